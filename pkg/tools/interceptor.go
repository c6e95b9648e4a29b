package tools

import (
	"context"

	"github.com/google/uuid"

	"github.com/deckbot-ai/deckbot/pkg/domain"
	"github.com/deckbot-ai/deckbot/pkg/llm"
)

// Emitter receives tool lifecycle events. The session broker satisfies
// this; tests substitute a recorder.
type Emitter interface {
	Emit(event string, payload any)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(event string, payload any)

// Emit implements Emitter.
func (f EmitterFunc) Emit(event string, payload any) { f(event, payload) }

// Intercept wraps every tool in the catalog with uniform observability:
// each invocation emits tool_start and then exactly one of tool_end or
// tool_error, correlated by a fresh call id. Errors are re-raised after
// the tool_error event; this is the only layer that re-raises, so the
// model-calling layer can distinguish genuine invocation failures from
// data-level "Error: ..." result strings.
func Intercept(catalog []*Tool, emitter Emitter) []*Tool {
	wrapped := make([]*Tool, len(catalog))
	for i, t := range catalog {
		wrapped[i] = intercept(t, emitter)
	}
	return wrapped
}

func intercept(t *Tool, emitter Emitter) *Tool {
	inner := t.Invoke
	spec := t.Spec
	return &Tool{
		Spec: spec,
		Invoke: func(ctx context.Context, args map[string]any) (string, error) {
			callID := uuid.New().String()
			normalized := normalizeArgs(spec, args)

			emitter.Emit(domain.EventToolStart, domain.ToolEventPayload{
				Tool:   spec.Name,
				Args:   normalized,
				CallID: callID,
			})

			result, err := inner(ctx, args)
			if err != nil {
				emitter.Emit(domain.EventToolError, domain.ToolEventPayload{
					Tool:   spec.Name,
					Args:   normalized,
					CallID: callID,
					Error:  err.Error(),
				})
				return "", err
			}

			emitter.Emit(domain.EventToolEnd, domain.ToolEventPayload{
				Tool:   spec.Name,
				Args:   normalized,
				CallID: callID,
				Result: result,
			})
			return result, nil
		},
	}
}

// normalizeArgs binds observed arguments to the tool's declared parameter
// names so subscribers always see a name-to-value map regardless of how
// the call was made. Undeclared keys are preserved; they still matter for
// debugging a misbehaving model.
func normalizeArgs(spec llm.ToolSpec, args map[string]any) map[string]any {
	normalized := make(map[string]any, len(args))
	for name := range spec.Parameters {
		if v, ok := args[name]; ok {
			normalized[name] = v
		}
	}
	for k, v := range args {
		if _, ok := normalized[k]; !ok {
			normalized[k] = v
		}
	}
	return normalized
}
