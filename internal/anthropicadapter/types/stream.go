package types

// Stream event discriminators, in the order they may appear. The value
// doubles as the SSE event name.
const (
	EventTypeMessageStart      = "message_start"
	EventTypeContentBlockStart = "content_block_start"
	EventTypeContentBlockDelta = "content_block_delta"
	EventTypeContentBlockStop  = "content_block_stop"
	EventTypeMessageDelta      = "message_delta"
	EventTypeMessageStop       = "message_stop"
	EventTypePing              = "ping"
	EventTypeError             = "error"
)

// Delta discriminators within content_block_delta.
const (
	DeltaTypeText      = "text_delta"
	DeltaTypeThinking  = "thinking_delta"
	DeltaTypeInputJSON = "input_json_delta"
)

// MessageStreamEvent is the union of every payload emitted on the Messages
// SSE stream. Type selects the populated fields. Index is a pointer because
// block index zero must stay on the wire.
type MessageStreamEvent struct {
	Type         string                 `json:"type"`
	Message      *CreateMessageResponse `json:"message,omitempty"`
	Index        *int                   `json:"index,omitempty"`
	ContentBlock *ContentBlock          `json:"content_block,omitempty"`
	Delta        *EventDelta            `json:"delta,omitempty"`
	Usage        *Usage                 `json:"usage,omitempty"`
}

// EventDelta is the delta payload for content_block_delta (text, thinking or
// partial tool input) and for message_delta (stop reason).
type EventDelta struct {
	Type         string  `json:"type,omitempty"`
	Text         *string `json:"text,omitempty"`
	Thinking     *string `json:"thinking,omitempty"`
	PartialJSON  *string `json:"partial_json,omitempty"`
	StopReason   *string `json:"stop_reason,omitempty"`
	StopSequence *string `json:"stop_sequence,omitempty"`
}
