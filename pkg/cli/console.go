// Package cli renders session events on the terminal and runs the
// interactive chat loop.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"github.com/deckbot-ai/deckbot/pkg/domain"
	"github.com/deckbot-ai/deckbot/pkg/session"
)

var (
	userColor    = color.New(color.FgGreen, color.Bold)
	modelColor   = color.New(color.FgCyan)
	toolColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	subtleColor  = color.New(color.FgHiBlack)
	successColor = color.New(color.FgGreen)
)

// Console renders broker events for a terminal user. Attach it to a
// session broker before sending messages.
type Console struct {
	out     io.Writer
	spinner *spinner.Spinner
}

// NewConsole creates a console writing to out.
func NewConsole(out io.Writer) *Console {
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	sp.Writer = out
	sp.Suffix = " thinking..."
	return &Console{out: out, spinner: sp}
}

// Handle renders one event. It satisfies session.Handler.
func (c *Console) Handle(ev session.Event) {
	switch ev.Name {
	case domain.EventThinkingStart:
		c.spinner.Start()
	case domain.EventThinkingEnd:
		c.spinner.Stop()
	case domain.EventMessage:
		if p, ok := ev.Payload.(domain.MessagePayload); ok {
			c.spinner.Stop()
			modelColor.Fprintf(c.out, "\n%s\n", p.Content)
		}
	case domain.EventToolStart:
		if p, ok := ev.Payload.(domain.ToolEventPayload); ok {
			c.spinner.Stop()
			toolColor.Fprintf(c.out, "  > %s", p.Tool)
			subtleColor.Fprintf(c.out, " %s\n", summarizeArgs(p.Args))
			c.spinner.Start()
		}
	case domain.EventToolError:
		if p, ok := ev.Payload.(domain.ToolEventPayload); ok {
			c.spinner.Stop()
			errorColor.Fprintf(c.out, "  ! %s failed: %s\n", p.Tool, p.Error)
			c.spinner.Start()
		}
	case domain.EventGeneratingImagesStart:
		c.spinner.Stop()
		subtleColor.Fprintln(c.out, "  Generating image candidates...")
		c.spinner.Start()
	case domain.EventImageProgress:
		if p, ok := ev.Payload.(domain.ImageProgressPayload); ok {
			c.spinner.Stop()
			subtleColor.Fprintf(c.out, "  [%d/%d] %s\n", p.Current, p.Total, p.Status)
			c.spinner.Start()
		}
	case domain.EventImagesReady:
		if p, ok := ev.Payload.(domain.ImagesReadyPayload); ok {
			c.spinner.Stop()
			successColor.Fprintf(c.out, "\n%d candidates ready:\n", len(p.Candidates))
			for i, cand := range p.Candidates {
				fmt.Fprintf(c.out, "  [%d] %s\n", i, cand)
			}
		}
	case domain.EventImageSelected:
		if p, ok := ev.Payload.(domain.ImageSelectedPayload); ok {
			successColor.Fprintf(c.out, "  Saved %s\n", p.Filename)
		}
	case domain.EventPresentationUpdated:
		subtleColor.Fprintln(c.out, "  (presentation updated)")
	case domain.EventError:
		if p, ok := ev.Payload.(domain.ErrorPayload); ok {
			c.spinner.Stop()
			errorColor.Fprintf(c.out, "Error: %s\n", p.Message)
		}
	}
}

func summarizeArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, 0, len(args))
	for k, v := range args {
		s := fmt.Sprintf("%v", v)
		if len(s) > 40 {
			s = s[:40] + "..."
		}
		parts = append(parts, fmt.Sprintf("%s=%q", k, s))
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// PromptSelection asks the user to pick a candidate index on the
// terminal. It satisfies tools.SelectFunc; a blank or invalid answer
// cancels.
func PromptSelection(in io.Reader, out io.Writer) func(candidates []string) int {
	reader := bufio.NewReader(in)
	return func(candidates []string) int {
		fmt.Fprintf(out, "\nSelect an image [0-%d], or press enter to skip: ", len(candidates)-1)
		line, err := reader.ReadString('\n')
		if err != nil {
			return -1
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return -1
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 0 || n >= len(candidates) {
			errorColor.Fprintln(out, "Invalid selection, skipping.")
			return -1
		}
		return n
	}
}

// Chat runs the interactive loop: read a line, send it through the
// session, repeat until EOF or /exit.
func Chat(svc *session.Service, in io.Reader, out io.Writer) error {
	console := NewConsole(out)
	unsubscribe := svc.Broker().Subscribe(console.Handle)
	defer unsubscribe()

	subtleColor.Fprintln(out, "Type a message, or /exit to quit.")
	reader := bufio.NewReader(in)
	for {
		userColor.Fprint(out, "\nyou> ")
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "/exit" || line == "/quit" {
			return nil
		}

		// Errors already surfaced through the console as error events.
		svc.SendMessage(context.Background(), line)
	}
}
