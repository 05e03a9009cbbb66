package tasks

import "encoding/json"

// ---
// QUEUE DEFINITIONS
// ---
const (
	// QueueCompose is the first step: synthesize, compose and encode.
	QueueCompose = "q_render_compose"

	// QueuePostprocess enhances and speeds up the encoded video.
	QueuePostprocess = "q_render_postprocess"

	// QueueNotify announces the finished render.
	QueueNotify = "q_render_notify"

	// ChannelRenderCompleted is published once a render is complete.
	ChannelRenderCompleted = "render_completed"
)

// Queues lists every queue the worker listens on.
var Queues = []string{QueueCompose, QueuePostprocess, QueueNotify}

// ---
// TASK PAYLOADS
// ---

// ComposeTaskPayload is the payload for QueueCompose
type ComposeTaskPayload struct {
	RenderID uint `json:"render_id"`
}

// PostprocessTaskPayload is the payload for QueuePostprocess
type PostprocessTaskPayload struct {
	RenderID uint `json:"render_id"`
}

// NotifyTaskPayload is the payload for QueueNotify
type NotifyTaskPayload struct {
	RenderID uint `json:"render_id"`
}

// RenderCompletedMessage is published on ChannelRenderCompleted
type RenderCompletedMessage struct {
	RenderID uint   `json:"render_id"`
	PublicID string `json:"public_id"`
	Status   string `json:"status"`
}

// ---
// HELPER FUNCTIONS
// ---

// Marshal creates a JSON payload for a task.
func Marshal(payload interface{}) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
