package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/deckbot-ai/deckbot/pkg/domain"
	"github.com/deckbot-ai/deckbot/pkg/llm"
)

// Provider implements llm.Provider using the Google Gen AI SDK.
type Provider struct {
	client *genai.Client
}

var _ llm.Provider = (*Provider)(nil)

// New creates a Gemini provider.
func New(ctx context.Context, apiKey string) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Provider{client: client}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "gemini" }

// Generate sends one turn to the model and returns its text or tool calls.
func (p *Provider) Generate(ctx context.Context, model, instructions string, history []domain.Turn, tools []llm.ToolSpec) (*llm.Response, error) {
	slog.Debug("Gemini.Generate", "model", model, "turns", len(history), "tools", len(tools))

	config := &genai.GenerateContentConfig{
		Tools: buildToolDeclarations(tools),
	}
	if instructions != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: instructions}},
		}
	}

	contents := turnsToContents(history)

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		if isQuotaError(err) {
			return nil, fmt.Errorf("%w: %v", llm.ErrQuotaExhausted, err)
		}
		return nil, err
	}

	out := &llm.Response{}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				out.Text += part.Text
			}
			if part.FunctionCall != nil {
				out.ToolCalls = append(out.ToolCalls, domain.FunctionCall{
					Name: part.FunctionCall.Name,
					Args: part.FunctionCall.Args,
				})
			}
		}
	}
	return out, nil
}

func turnsToContents(history []domain.Turn) []*genai.Content {
	var contents []*genai.Content
	for _, turn := range history {
		role := genai.RoleUser
		if turn.Role == domain.RoleModel {
			role = genai.RoleModel
		}

		var parts []*genai.Part
		if turn.Content != "" {
			parts = append(parts, &genai.Part{Text: turn.Content})
		}
		for _, p := range turn.Parts {
			switch {
			case p.FunctionCall != nil:
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						Name: p.FunctionCall.Name,
						Args: p.FunctionCall.Args,
					},
				})
			case p.FunctionResponse != nil:
				parts = append(parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						Name:     p.FunctionResponse.Name,
						Response: p.FunctionResponse.Response,
					},
				})
			case p.Text != "":
				parts = append(parts, &genai.Part{Text: p.Text})
			}
		}

		if len(parts) > 0 {
			contents = append(contents, &genai.Content{Role: string(role), Parts: parts})
		}
	}
	return contents
}

func buildToolDeclarations(tools []llm.ToolSpec) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	var decls []*genai.FunctionDeclaration
	for _, t := range tools {
		properties := make(map[string]*genai.Schema, len(t.Parameters))
		for name, param := range t.Parameters {
			schemaType := genai.TypeString
			if param.Type == "integer" {
				schemaType = genai.TypeInteger
			}
			properties[name] = &genai.Schema{
				Type:        schemaType,
				Description: param.Description,
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: properties,
				Required:   t.Required,
			},
		})
	}

	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func isQuotaError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
