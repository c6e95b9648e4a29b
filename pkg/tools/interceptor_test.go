package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deckbot-ai/deckbot/pkg/domain"
	"github.com/deckbot-ai/deckbot/pkg/llm"
)

type recordedEvent struct {
	name    string
	payload domain.ToolEventPayload
}

type recorder struct {
	events []recordedEvent
}

func (r *recorder) Emit(event string, payload any) {
	p, _ := payload.(domain.ToolEventPayload)
	r.events = append(r.events, recordedEvent{name: event, payload: p})
}

func echoTool() *Tool {
	return &Tool{
		Spec: llm.ToolSpec{
			Name: "echo",
			Parameters: map[string]llm.ParamSpec{
				"text": strParam("text to echo"),
			},
			Required: []string{"text"},
		},
		Invoke: func(ctx context.Context, args map[string]any) (string, error) {
			return args["text"].(string), nil
		},
	}
}

func failTool(err error) *Tool {
	return &Tool{
		Spec: llm.ToolSpec{Name: "boom", Parameters: map[string]llm.ParamSpec{}},
		Invoke: func(ctx context.Context, args map[string]any) (string, error) {
			return "", err
		},
	}
}

func TestInterceptEmitsStartEndPair(t *testing.T) {
	rec := &recorder{}
	catalog := Intercept([]*Tool{echoTool()}, rec)

	result, err := catalog[0].Invoke(context.Background(), map[string]any{"text": "hi"})
	require.NoError(t, err)
	require.Equal(t, "hi", result)

	require.Len(t, rec.events, 2)
	require.Equal(t, domain.EventToolStart, rec.events[0].name)
	require.Equal(t, domain.EventToolEnd, rec.events[1].name)

	start, end := rec.events[0].payload, rec.events[1].payload
	require.Equal(t, "echo", start.Tool)
	require.NotEmpty(t, start.CallID)
	require.Equal(t, start.CallID, end.CallID)
	require.Equal(t, "hi", end.Result)
}

func TestInterceptFreshCallIDPerInvocation(t *testing.T) {
	rec := &recorder{}
	catalog := Intercept([]*Tool{echoTool()}, rec)

	_, err := catalog[0].Invoke(context.Background(), map[string]any{"text": "a"})
	require.NoError(t, err)
	_, err = catalog[0].Invoke(context.Background(), map[string]any{"text": "b"})
	require.NoError(t, err)

	require.NotEqual(t, rec.events[0].payload.CallID, rec.events[2].payload.CallID)
}

func TestInterceptErrorReRaised(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("invocation blew up")
	catalog := Intercept([]*Tool{failTool(boom)}, rec)

	_, err := catalog[0].Invoke(context.Background(), nil)
	require.ErrorIs(t, err, boom)

	require.Len(t, rec.events, 2)
	require.Equal(t, domain.EventToolStart, rec.events[0].name)
	require.Equal(t, domain.EventToolError, rec.events[1].name)
	require.Equal(t, "invocation blew up", rec.events[1].payload.Error)
}

func TestNormalizeArgsPreservesUnknownKeys(t *testing.T) {
	spec := llm.ToolSpec{
		Name: "t",
		Parameters: map[string]llm.ParamSpec{
			"known": strParam(""),
		},
	}
	normalized := normalizeArgs(spec, map[string]any{"known": "a", "extra": 7})
	require.Equal(t, "a", normalized["known"])
	require.Equal(t, 7, normalized["extra"])
}

func TestCatalogFindAndSpecs(t *testing.T) {
	catalog := Catalog(&Sandbox{})
	require.NotNil(t, Find(catalog, "write_file"))
	require.Nil(t, Find(catalog, "no_such_tool"))

	specs := Specs(catalog)
	require.Len(t, specs, len(catalog))
	names := make(map[string]bool)
	for _, s := range specs {
		names[s.Name] = true
	}
	for _, want := range []string{
		"list_files", "read_file", "write_file", "replace_text",
		"copy_file", "move_file", "delete_file", "create_directory",
		"generate_image", "compile_presentation", "export_pdf",
		"get_presentation_summary", "get_aspect_ratio", "set_aspect_ratio",
		"inspect_slide",
	} {
		require.True(t, names[want], "missing tool %s", want)
	}
}
