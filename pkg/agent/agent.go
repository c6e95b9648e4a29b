package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/deckbot-ai/deckbot/pkg/deck"
	"github.com/deckbot-ai/deckbot/pkg/domain"
	"github.com/deckbot-ai/deckbot/pkg/llm"
	"github.com/deckbot-ai/deckbot/pkg/tools"
)

// DefaultModels is the preference-ordered list of models tried per turn.
// A hard failure advances to the next entry; quota exhaustion switches
// to FallbackModel for the remainder of the turn.
var DefaultModels = []string{
	"gemini-2.0-flash-exp",
	"gemini-exp-1206",
	"gemini-1.5-pro",
}

// FallbackModel handles turns when the preferred models are quota-limited.
const FallbackModel = "gemini-1.5-flash"

// maxToolIterations bounds the tool-calling loop within one user turn.
// A model stuck re-issuing tool calls terminates with an error message
// instead of spinning.
const maxToolIterations = 10

// Agent drives one presentation's conversation: it rebuilds the system
// prompt from current file state each turn, runs the model's tool calls
// through the catalog, and persists every turn to the JSONL log so a
// restarted process resumes mid-conversation.
type Agent struct {
	name     string
	manager  *deck.Manager
	sandbox  *tools.Sandbox
	catalog  []*tools.Tool
	provider llm.Provider
	log      *Log
	logger   *slog.Logger

	models   []string
	fallback string

	history []domain.Turn
}

// Config assembles an Agent.
type Config struct {
	Name     string
	Manager  *deck.Manager
	Sandbox  *tools.Sandbox
	Catalog  []*tools.Tool
	Provider llm.Provider
	Logger   *slog.Logger

	// Models overrides the preference order; empty uses DefaultModels.
	Models []string
	// Fallback overrides the quota-fallback model; empty uses FallbackModel.
	Fallback string
}

// New builds an agent and loads any prior conversation from the
// presentation's chat history file. Malformed history lines are skipped,
// not fatal; a truncated log from a crashed process must not brick the
// presentation.
func New(cfg Config) (*Agent, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	models := cfg.Models
	if len(models) == 0 {
		models = DefaultModels
	}
	fallback := cfg.Fallback
	if fallback == "" {
		fallback = FallbackModel
	}

	log := NewLog(filepath.Join(cfg.Manager.Dir(cfg.Name), HistoryFile))
	history, err := log.Load()
	if err != nil {
		return nil, fmt.Errorf("loading chat history: %w", err)
	}

	return &Agent{
		name:     cfg.Name,
		manager:  cfg.Manager,
		sandbox:  cfg.Sandbox,
		catalog:  cfg.Catalog,
		provider: cfg.Provider,
		log:      log,
		logger:   logger,
		models:   models,
		fallback: fallback,
		history:  history,
	}, nil
}

// History returns the in-memory conversation, oldest first.
func (a *Agent) History() []domain.Turn {
	out := make([]domain.Turn, len(a.history))
	copy(out, a.history)
	return out
}

// Chat sends one user message through the model and runs any tool calls
// it issues, feeding results back until the model replies with text or
// the iteration cap is hit. The returned string is the model's final
// text for this turn.
func (a *Agent) Chat(ctx context.Context, input string) (string, error) {
	userTurn := domain.Turn{Role: domain.RoleUser, Content: input}
	a.record(userTurn)

	modelIdx := 0
	fellBack := false

	for iteration := 0; iteration < maxToolIterations; iteration++ {
		instructions := a.buildInstructions()

		resp, err := a.generateTurn(ctx, instructions, &modelIdx, &fellBack)
		if err != nil {
			return "", fmt.Errorf("model generation failed: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			reply := domain.Turn{Role: domain.RoleModel, Content: resp.Text}
			a.record(reply)
			return resp.Text, nil
		}

		// Record the model's function calls, then each tool result, so
		// the durable log replays to the same provider-visible history.
		callTurn := domain.Turn{Role: domain.RoleModel, Content: resp.Text}
		for i := range resp.ToolCalls {
			callTurn.Parts = append(callTurn.Parts, domain.Part{
				FunctionCall: &resp.ToolCalls[i],
			})
		}
		a.record(callTurn)

		for _, call := range resp.ToolCalls {
			result := a.invoke(ctx, call)
			a.record(domain.Turn{
				Role: domain.RoleTool,
				Parts: []domain.Part{{
					FunctionResponse: &domain.FunctionResponse{
						Name:     call.Name,
						Response: map[string]any{"result": result},
					},
				}},
			})
		}
	}

	msg := fmt.Sprintf("Stopped after %d tool iterations without a final answer. Please rephrase or break the request into smaller steps.", maxToolIterations)
	a.record(domain.Turn{Role: domain.RoleModel, Content: msg})
	return "", errors.New(msg)
}

func (a *Agent) generate(ctx context.Context, model, instructions string) (*llm.Response, error) {
	return a.provider.Generate(ctx, model, instructions, a.history, tools.Specs(a.catalog))
}

// generateTurn walks the candidate models in preference order until one
// answers. Quota exhaustion switches to the fallback model once per
// turn; any other failure advances to the next candidate. The position
// that answers is sticky for the rest of the turn's tool loop.
func (a *Agent) generateTurn(ctx context.Context, instructions string, modelIdx *int, fellBack *bool) (*llm.Response, error) {
	for {
		model := a.models[*modelIdx]
		if *fellBack {
			model = a.fallback
		}
		resp, err := a.generate(ctx, model, instructions)
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, llm.ErrQuotaExhausted) && !*fellBack {
			a.logger.Warn("model quota exhausted, switching to fallback",
				"model", model, "fallback", a.fallback)
			*fellBack = true
			continue
		}
		if !*fellBack && *modelIdx+1 < len(a.models) {
			a.logger.Warn("model failed, trying next candidate",
				"model", model, "next", a.models[*modelIdx+1], "error", err)
			*modelIdx++
			continue
		}
		return nil, err
	}
}

// invoke runs one model-issued tool call. Tool results are data for the
// model even when they describe failures; only invocation-level errors
// (unknown tool, argument mismatch, interceptor re-raise) become error
// strings here rather than aborting the turn, so the model can recover.
func (a *Agent) invoke(ctx context.Context, call domain.FunctionCall) string {
	tool := tools.Find(a.catalog, call.Name)
	if tool == nil {
		a.logger.Warn("model called unknown tool", "tool", call.Name)
		return fmt.Sprintf("Error: Unknown tool '%s'.", call.Name)
	}
	result, err := tool.Invoke(ctx, call.Args)
	if err != nil {
		a.logger.Error("tool invocation failed", "tool", call.Name, "error", err)
		return fmt.Sprintf("Error: %v", err)
	}
	return result
}

// buildInstructions rebuilds the system prompt from live state. Metadata
// read failures degrade to a minimal presentation rather than aborting
// the turn.
func (a *Agent) buildInstructions() string {
	p, err := a.manager.Get(a.name)
	if err != nil {
		a.logger.Warn("loading presentation metadata for prompt", "error", err)
		p = &domain.Presentation{Name: a.name}
	}
	return buildSystemPrompt(p, a.sandbox.FullContext(), a.sandbox.GetAspectRatio())
}

// record appends the turn to memory and the durable log. Log write
// failures are logged and tolerated; losing durability is better than
// losing the live conversation.
func (a *Agent) record(turn domain.Turn) {
	a.history = append(a.history, turn)
	if err := a.log.Append(turn); err != nil {
		a.logger.Error("appending chat history", "error", err)
	}
}
