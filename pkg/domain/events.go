package domain

// Event names broadcast through the session broker. Subscribers may rely
// on ordering within one broker: thinking_start/thinking_end bracket every
// chat turn, and images_ready always follows the image_progress sequence
// for the same batch.
const (
	EventThinkingStart         = "thinking_start"
	EventThinkingEnd           = "thinking_end"
	EventMessage               = "message"
	EventToolStart             = "tool_start"
	EventToolEnd               = "tool_end"
	EventToolError             = "tool_error"
	EventGeneratingImagesStart = "generating_images_start"
	EventImageProgress         = "image_progress"
	EventImagesReady           = "images_ready"
	EventImageSelected         = "image_selected"
	EventPresentationUpdated   = "presentation_updated"
	EventError                 = "error"
)

// MessagePayload is the payload for "message" events.
type MessagePayload struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ToolEventPayload is the payload for tool_start/tool_end/tool_error.
// Result is set on tool_end, Error on tool_error.
type ToolEventPayload struct {
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args"`
	CallID string         `json:"call_id"`
	Result string         `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// ImageProgressPayload reports candidate generation progress.
type ImageProgressPayload struct {
	Current    int      `json:"current"`
	Total      int      `json:"total"`
	Status     string   `json:"status"`
	Candidates []string `json:"candidates"`
}

// ImagesReadyPayload announces a completed candidate batch.
type ImagesReadyPayload struct {
	Candidates []string `json:"candidates"`
	Prompt     string   `json:"prompt"`
	BatchSlug  string   `json:"batch_slug"`
}

// ImageSelectedPayload announces a persisted selection.
type ImageSelectedPayload struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
}

// ErrorPayload is the payload for "error" events. Only string messages
// cross into the event stream, never exception objects or stack traces.
type ErrorPayload struct {
	Message string `json:"message"`
}
