// deckbot is an AI-assisted Marp presentation builder.
//
// Usage:
//
//	export GOOGLE_API_KEY="your-api-key"
//	deckbot serve                # web UI + API
//	deckbot chat <name>          # terminal chat session
//	deckbot list                 # list presentations
//	deckbot create <name>        # scaffold a presentation
//	deckbot export <name>        # export to PDF
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"google.golang.org/genai"

	"github.com/deckbot-ai/deckbot/pkg/agent"
	"github.com/deckbot-ai/deckbot/pkg/cli"
	"github.com/deckbot-ai/deckbot/pkg/config"
	"github.com/deckbot-ai/deckbot/pkg/deck"
	"github.com/deckbot-ai/deckbot/pkg/domain"
	"github.com/deckbot-ai/deckbot/pkg/imagegen"
	"github.com/deckbot-ai/deckbot/pkg/llm/gemini"
	"github.com/deckbot-ai/deckbot/pkg/server"
	"github.com/deckbot-ai/deckbot/pkg/session"
	"github.com/deckbot-ai/deckbot/pkg/tools"
	"github.com/deckbot-ai/deckbot/pkg/visualqa"
)

var (
	flagRoot    string
	flagVerbose bool
)

func main() {
	root := &cobra.Command{
		Use:   "deckbot",
		Short: "AI-assisted Marp presentation builder",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if flagVerbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().StringVar(&flagRoot, "root", "", "presentations root directory (default: $DECKBOT_ROOT, ./presentations, or ~/.deckbot)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		serveCmd(),
		chatCmd(),
		listCmd(),
		createCmd(),
		deleteCmd(),
		duplicateCmd(),
		exportCmd(),
		configCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newManager() (*deck.Manager, error) {
	rootDir := flagRoot
	if rootDir == "" {
		rootDir = config.RootDir()
	}
	return deck.NewManager(rootDir)
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newManager()
			if err != nil {
				return err
			}
			env, err := newEnv(cmd.Context(), manager)
			if err != nil {
				return err
			}

			registry := session.NewRegistry(func(name string) (*session.Service, error) {
				return env.buildSession(name, tools.ModeInteractive, nil)
			})

			specs := tools.Specs(tools.Catalog(&tools.Sandbox{}))
			srv := server.New(manager, registry, specs)
			return srv.Start(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <name>",
		Short: "Chat with a presentation on the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newManager()
			if err != nil {
				return err
			}
			if _, err := manager.Get(args[0]); err != nil {
				return err
			}
			env, err := newEnv(cmd.Context(), manager)
			if err != nil {
				return err
			}

			svc, err := env.buildSession(args[0], tools.ModeSynchronous,
				cli.PromptSelection(os.Stdin, os.Stdout))
			if err != nil {
				return err
			}
			return cli.Chat(svc, os.Stdin, os.Stdout)
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List presentations",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newManager()
			if err != nil {
				return err
			}
			list, err := manager.List()
			if err != nil {
				return err
			}
			for _, p := range list {
				fmt.Printf("%-30s %s\n", p.Name, p.Description)
			}
			return nil
		},
	}
}

func createCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a presentation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newManager()
			if err != nil {
				return err
			}
			p, err := manager.Create(args[0], description)
			if err != nil {
				return err
			}
			fmt.Printf("Created %s at %s\n", p.Name, manager.Dir(p.Name))
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "presentation description")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a presentation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newManager()
			if err != nil {
				return err
			}
			return manager.Delete(args[0])
		},
	}
}

func duplicateCmd() *cobra.Command {
	var copyImages bool
	cmd := &cobra.Command{
		Use:   "duplicate <name> <new-name>",
		Short: "Duplicate a presentation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newManager()
			if err != nil {
				return err
			}
			p, err := manager.Duplicate(args[0], args[1], copyImages)
			if err != nil {
				return err
			}
			fmt.Printf("Created %s\n", p.Name)
			return nil
		},
	}
	cmd.Flags().BoolVar(&copyImages, "copy-images", true, "copy the images directory")
	return cmd
}

func exportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <name>",
		Short: "Export a presentation to PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newManager()
			if err != nil {
				return err
			}
			if _, err := manager.Get(args[0]); err != nil {
				return err
			}
			if output == "" {
				output = args[0] + ".pdf"
			}
			compiler := &deck.MarpCompiler{}
			if err := compiler.ExportPDF(cmd.Context(), manager.Dir(args[0]), output); err != nil {
				return err
			}
			fmt.Printf("Exported %s\n", filepath.Join(manager.Dir(args[0]), output))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output filename (default <name>.pdf)")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage preferences",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print a preference",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				prefs, err := config.LoadPreferences("")
				if err != nil {
					return err
				}
				fmt.Println(prefs.Get(args[0], ""))
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Set a preference",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				prefs, err := config.LoadPreferences("")
				if err != nil {
					return err
				}
				return prefs.Set(args[0], args[1])
			},
		},
	)
	return cmd
}

// env bundles the shared collaborators every session needs.
type env struct {
	manager  *deck.Manager
	provider *gemini.Provider
	client   *genai.Client
	prefs    *config.Preferences
}

func newEnv(ctx context.Context, manager *deck.Manager) (*env, error) {
	apiKey := config.APIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is not set")
	}
	provider, err := gemini.New(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	prefs, err := config.LoadPreferences("")
	if err != nil {
		return nil, err
	}
	return &env{manager: manager, provider: provider, client: client, prefs: prefs}, nil
}

// buildSession wires one presentation's sandbox, tool catalog, agent,
// and session service around a shared broker.
func (e *env) buildSession(name string, mode tools.Mode, selector tools.SelectFunc) (*session.Service, error) {
	dir := e.manager.Dir(name)
	broker := session.NewBroker(slog.Default())

	generator := imagegen.NewGeminiGenerator(e.client, filepath.Join(dir, "drafts"))
	inspector := visualqa.New(e.client, slog.Default())
	compiler := &deck.MarpCompiler{}

	// The generate_image tool in interactive mode routes through the
	// session service, which does not exist yet while the sandbox is
	// being built. Late-bind it.
	var svc *session.Service

	sandbox := tools.NewSandbox(tools.SandboxConfig{
		Presentation: name,
		Mode:         mode,
		Manager:      e.manager,
		Compiler:     compiler,
		Generator:    generator,
		Inspector:    inspector,
		OnGenerateRequest: func(prompt, aspectRatio, resolution string) {
			svc.GenerateImages(context.Background(), prompt, aspectRatio, resolution)
		},
		SelectCandidate: selector,
		OnUpdated: func() {
			broker.Emit(domain.EventPresentationUpdated, map[string]string{"name": name})
		},
	})

	catalog := tools.Intercept(tools.Catalog(sandbox), broker)

	models := agent.DefaultModels
	if preferred := e.prefs.Get("default_model", ""); preferred != "" {
		models = append([]string{preferred}, agent.DefaultModels...)
	}

	ag, err := agent.New(agent.Config{
		Name:     name,
		Manager:  e.manager,
		Sandbox:  sandbox,
		Catalog:  catalog,
		Provider: e.provider,
		Models:   models,
	})
	if err != nil {
		return nil, err
	}

	svc = session.NewService(session.ServiceConfig{
		Name:      name,
		Broker:    broker,
		Agent:     ag,
		Generator: generator,
		ImagesDir: filepath.Join(dir, "images"),
		StylePrompt: func() string {
			return e.manager.ImageStylePrompt(name)
		},
	})
	return svc, nil
}
