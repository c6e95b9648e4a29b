package domain

import "time"

// Presentation is the identity and metadata for one deck. The backing
// metadata.json file on disk is the source of truth; in-memory copies are
// read-through caches refreshed by whoever holds them.
type Presentation struct {
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	AspectRatio  string      `json:"aspect_ratio"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	Instructions string      `json:"instructions,omitempty"`
	ImageStyle   *ImageStyle `json:"image_style,omitempty"`
}

// ImageStyle carries brand guidance applied to every image generation
// request for a presentation.
type ImageStyle struct {
	Prompt          string   `json:"prompt,omitempty"`
	ReferenceImages []string `json:"reference_images,omitempty"`
	StyleReference  string   `json:"style_reference,omitempty"`
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
	RoleTool   Role = "tool"
)

// Turn is one logged exchange unit in a presentation's conversation log.
// Simple turns carry Content; tool-call and tool-response turns carry Parts.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`
	Parts   []Part `json:"parts,omitempty"`
}

// Part is a structured component of a tool-call or tool-response turn.
type Part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
}

// FunctionCall is a model-issued tool invocation request.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// FunctionResponse is a tool result fed back to the model.
type FunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// ToolInvocation is the ephemeral record of one tool call. A fresh CallID
// is minted per call; exactly one tool_start and exactly one terminal
// event (tool_end xor tool_error) are emitted for it.
type ToolInvocation struct {
	CallID string         `json:"call_id"`
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args"`
	Result string         `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Batch is one image generation request. Candidates are appended in
// generation order as they complete; the slice index is the selection key.
// A batch is never mutated after completion except to be consumed exactly
// once by a selection.
type Batch struct {
	Slug        string    `json:"batch_slug"`
	Prompt      string    `json:"prompt"`
	AspectRatio string    `json:"aspect_ratio"`
	Resolution  string    `json:"resolution"`
	Candidates  []string  `json:"candidates"`
	CreatedAt   time.Time `json:"created_at"`
}
