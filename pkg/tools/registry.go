package tools

import (
	"context"
	"fmt"

	"github.com/deckbot-ai/deckbot/pkg/llm"
)

// Tool is one named, schema-described operation the model may invoke.
// The catalog is a fixed static registry built once per session; the same
// instances serve both model-issued calls and direct programmatic calls,
// so observers see every invocation regardless of call path.
type Tool struct {
	Spec   llm.ToolSpec
	Invoke func(ctx context.Context, args map[string]any) (string, error)
}

// Name returns the tool's declared name.
func (t *Tool) Name() string { return t.Spec.Name }

// stringArg extracts a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("argument %q is required", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return s, nil
}

// optStringArg extracts an optional string argument.
func optStringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// optIntArg extracts an optional integer argument. The model sends
// numbers as float64 through JSON.
func optIntArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func strParam(desc string) llm.ParamSpec {
	return llm.ParamSpec{Type: "string", Description: desc}
}

func intParam(desc string) llm.ParamSpec {
	return llm.ParamSpec{Type: "integer", Description: desc}
}

// Catalog builds the fixed tool registry around a sandbox.
func Catalog(s *Sandbox) []*Tool {
	return []*Tool{
		{
			Spec: llm.ToolSpec{
				Name:        "list_files",
				Description: "List files in the presentation directory, newest first.",
				Parameters: map[string]llm.ParamSpec{
					"directory": strParam("Subdirectory to list. Defaults to the presentation root."),
				},
			},
			Invoke: func(ctx context.Context, args map[string]any) (string, error) {
				return s.ListFiles(optStringArg(args, "directory")), nil
			},
		},
		{
			Spec: llm.ToolSpec{
				Name:        "read_file",
				Description: "Read the full content of a file in the presentation directory.",
				Parameters: map[string]llm.ParamSpec{
					"filename": strParam("The file to read."),
				},
				Required: []string{"filename"},
			},
			Invoke: func(ctx context.Context, args map[string]any) (string, error) {
				filename, err := stringArg(args, "filename")
				if err != nil {
					return "", err
				}
				return s.ReadFile(filename), nil
			},
		},
		{
			Spec: llm.ToolSpec{
				Name:        "write_file",
				Description: "Overwrite a file with new content. Writes to deck.marp.md are validated first and rejected if the deck structure is invalid.",
				Parameters: map[string]llm.ParamSpec{
					"filename": strParam("The file to write."),
					"content":  strParam("The full new content."),
				},
				Required: []string{"filename", "content"},
			},
			Invoke: func(ctx context.Context, args map[string]any) (string, error) {
				filename, err := stringArg(args, "filename")
				if err != nil {
					return "", err
				}
				content, err := stringArg(args, "content")
				if err != nil {
					return "", err
				}
				return s.WriteFile(ctx, filename, content), nil
			},
		},
		{
			Spec: llm.ToolSpec{
				Name:        "replace_text",
				Description: "Replace an exact substring in a file. Fails if the old text is not present.",
				Parameters: map[string]llm.ParamSpec{
					"filename": strParam("The file to edit."),
					"old_text": strParam("The exact text to replace."),
					"new_text": strParam("The replacement text."),
				},
				Required: []string{"filename", "old_text", "new_text"},
			},
			Invoke: func(ctx context.Context, args map[string]any) (string, error) {
				filename, err := stringArg(args, "filename")
				if err != nil {
					return "", err
				}
				oldText, err := stringArg(args, "old_text")
				if err != nil {
					return "", err
				}
				newText, err := stringArg(args, "new_text")
				if err != nil {
					return "", err
				}
				return s.ReplaceText(ctx, filename, oldText, newText), nil
			},
		},
		{
			Spec: llm.ToolSpec{
				Name:        "copy_file",
				Description: "Copy a file within the presentation directory.",
				Parameters: map[string]llm.ParamSpec{
					"source":      strParam("The source file."),
					"destination": strParam("The destination path."),
				},
				Required: []string{"source", "destination"},
			},
			Invoke: func(ctx context.Context, args map[string]any) (string, error) {
				source, err := stringArg(args, "source")
				if err != nil {
					return "", err
				}
				destination, err := stringArg(args, "destination")
				if err != nil {
					return "", err
				}
				return s.CopyFile(ctx, source, destination), nil
			},
		},
		{
			Spec: llm.ToolSpec{
				Name:        "move_file",
				Description: "Move or rename a file within the presentation directory.",
				Parameters: map[string]llm.ParamSpec{
					"source":      strParam("The source file."),
					"destination": strParam("The destination path."),
				},
				Required: []string{"source", "destination"},
			},
			Invoke: func(ctx context.Context, args map[string]any) (string, error) {
				source, err := stringArg(args, "source")
				if err != nil {
					return "", err
				}
				destination, err := stringArg(args, "destination")
				if err != nil {
					return "", err
				}
				return s.MoveFile(ctx, source, destination), nil
			},
		},
		{
			Spec: llm.ToolSpec{
				Name:        "delete_file",
				Description: "Delete a file or directory from the presentation.",
				Parameters: map[string]llm.ParamSpec{
					"filename": strParam("The file or directory to delete."),
				},
				Required: []string{"filename"},
			},
			Invoke: func(ctx context.Context, args map[string]any) (string, error) {
				filename, err := stringArg(args, "filename")
				if err != nil {
					return "", err
				}
				return s.DeleteFile(ctx, filename), nil
			},
		},
		{
			Spec: llm.ToolSpec{
				Name:        "create_directory",
				Description: "Create a subdirectory within the presentation.",
				Parameters: map[string]llm.ParamSpec{
					"dirname": strParam("The directory to create."),
				},
				Required: []string{"dirname"},
			},
			Invoke: func(ctx context.Context, args map[string]any) (string, error) {
				dirname, err := stringArg(args, "dirname")
				if err != nil {
					return "", err
				}
				return s.CreateDirectory(ctx, dirname), nil
			},
		},
		{
			Spec: llm.ToolSpec{
				Name:        "generate_image",
				Description: "Generate an image for the presentation. Candidates are shown to the user for selection; wait for the [SYSTEM] selection message before referencing the image.",
				Parameters: map[string]llm.ParamSpec{
					"prompt":       strParam("Description of the image to generate."),
					"aspect_ratio": strParam("Aspect ratio like \"1:1\", \"16:9\", \"4:3\". Defaults to the presentation's ratio."),
					"resolution":   strParam("Resolution: \"1K\", \"2K\", or \"4K\". Defaults to 2K."),
				},
				Required: []string{"prompt"},
			},
			Invoke: func(ctx context.Context, args map[string]any) (string, error) {
				prompt, err := stringArg(args, "prompt")
				if err != nil {
					return "", err
				}
				return s.GenerateImage(ctx, prompt,
					optStringArg(args, "aspect_ratio"),
					optStringArg(args, "resolution")), nil
			},
		},
		{
			Spec: llm.ToolSpec{
				Name:        "compile_presentation",
				Description: "Build the deck to HTML for preview. Optionally open at a specific slide.",
				Parameters: map[string]llm.ParamSpec{
					"slide_number": intParam("Slide to open after compiling."),
				},
			},
			Invoke: func(ctx context.Context, args map[string]any) (string, error) {
				return s.CompilePresentation(ctx, optIntArg(args, "slide_number")), nil
			},
		},
		{
			Spec: llm.ToolSpec{
				Name:        "export_pdf",
				Description: "Export the deck to PDF. Requires Chrome/Chromium on the host.",
				Parameters:  map[string]llm.ParamSpec{},
			},
			Invoke: func(ctx context.Context, args map[string]any) (string, error) {
				return s.ExportPDF(ctx), nil
			},
		},
		{
			Spec: llm.ToolSpec{
				Name:        "get_presentation_summary",
				Description: "Get a text summary of the deck: slide titles, images, and content previews.",
				Parameters:  map[string]llm.ParamSpec{},
			},
			Invoke: func(ctx context.Context, args map[string]any) (string, error) {
				return s.GetPresentationSummary(), nil
			},
		},
		{
			Spec: llm.ToolSpec{
				Name:        "get_aspect_ratio",
				Description: "Get the presentation's aspect ratio.",
				Parameters:  map[string]llm.ParamSpec{},
			},
			Invoke: func(ctx context.Context, args map[string]any) (string, error) {
				return s.GetAspectRatio(), nil
			},
		},
		{
			Spec: llm.ToolSpec{
				Name:        "set_aspect_ratio",
				Description: "Set the presentation's aspect ratio (e.g. \"16:9\", \"4:3\") and recompile.",
				Parameters: map[string]llm.ParamSpec{
					"aspect_ratio": strParam("The new aspect ratio."),
				},
				Required: []string{"aspect_ratio"},
			},
			Invoke: func(ctx context.Context, args map[string]any) (string, error) {
				ratio, err := stringArg(args, "aspect_ratio")
				if err != nil {
					return "", err
				}
				return s.SetAspectRatio(ctx, ratio), nil
			},
		},
		{
			Spec: llm.ToolSpec{
				Name:        "inspect_slide",
				Description: "Run a visual inspection of a rendered slide. Returns a report only when issues are found.",
				Parameters: map[string]llm.ParamSpec{
					"slide_number": intParam("The slide to inspect."),
				},
				Required: []string{"slide_number"},
			},
			Invoke: func(ctx context.Context, args map[string]any) (string, error) {
				return s.InspectSlide(ctx, optIntArg(args, "slide_number")), nil
			},
		},
	}
}

// Specs extracts the LLM-facing function declarations from a catalog.
func Specs(catalog []*Tool) []llm.ToolSpec {
	specs := make([]llm.ToolSpec, len(catalog))
	for i, t := range catalog {
		specs[i] = t.Spec
	}
	return specs
}

// Find returns the named tool, or nil.
func Find(catalog []*Tool, name string) *Tool {
	for _, t := range catalog {
		if t.Spec.Name == name {
			return t
		}
	}
	return nil
}
