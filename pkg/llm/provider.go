package llm

import (
	"context"
	"errors"

	"github.com/deckbot-ai/deckbot/pkg/domain"
)

// ErrQuotaExhausted signals a rate-limit/quota failure from the provider.
// The agent reacts by switching to its fallback model and retrying once.
var ErrQuotaExhausted = errors.New("provider quota exhausted")

// ToolSpec describes one callable function exposed to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]ParamSpec
	Required    []string
}

// ParamSpec describes one tool parameter.
type ParamSpec struct {
	Type        string // "string" or "integer"
	Description string
}

// Response is one model reply: final text, or one or more tool calls the
// caller must execute and feed back.
type Response struct {
	Text      string
	ToolCalls []domain.FunctionCall
}

// Provider abstracts the LLM chat/tool-calling service.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Generate sends the system instructions, conversation history, and
	// tool catalog to the named model and returns its reply. Quota
	// failures are reported as (or wrapping) ErrQuotaExhausted.
	Generate(ctx context.Context, model, instructions string, history []domain.Turn, tools []ToolSpec) (*Response, error)
}
