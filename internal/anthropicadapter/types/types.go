package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Roles accepted in CreateMessageRequest.Messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CreateMessageRequest is the inbound body of POST /v1/messages.
type CreateMessageRequest struct {
	Model         string          `json:"model"`
	Messages      []InputMessage  `json:"messages"`
	MaxTokens     int             `json:"max_tokens"`
	System        json.RawMessage `json:"system,omitempty"`
	Metadata      *Metadata       `json:"metadata,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Stream        *bool           `json:"stream,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopK          *int            `json:"top_k,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	Tools         []Tool          `json:"tools,omitempty"`
	ToolChoice    *ToolChoice     `json:"tool_choice,omitempty"`
}

// SystemText decodes the polymorphic system field, which is either a plain
// string or an array of text blocks. Block form joins the text members with
// blank lines; non-text blocks are ignored.
func (r CreateMessageRequest) SystemText() (string, error) {
	if len(r.System) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(r.System, &s); err == nil {
		return s, nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(r.System, &blocks); err != nil {
		return "", fmt.Errorf("system prompt: %w", err)
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == ContentBlockTypeText {
			parts = append(parts, b.TextValue())
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// Streaming reports whether the client asked for an SSE response.
func (r CreateMessageRequest) Streaming() bool {
	return r.Stream != nil && *r.Stream
}

// InputMessage is a single conversation turn. Content is either a plain
// string or an array of content blocks; use ContentBlocks to decode.
type InputMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// ContentBlocks decodes the content union. The string shorthand becomes a
// single text block.
func (m InputMessage) ContentBlocks() ([]ContentBlock, error) {
	if len(m.Content) == 0 {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return []ContentBlock{NewTextBlock(s)}, nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(m.Content, &blocks); err != nil {
		return nil, fmt.Errorf("message content: %w", err)
	}
	return blocks, nil
}

// Metadata carries opaque request metadata; only user_id is defined.
type Metadata struct {
	UserID string `json:"user_id,omitempty"`
}

// Tool declares a callable function offered to the model. InputSchema is a
// JSON Schema object passed through untouched.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// ToolChoice selection modes.
const (
	ToolChoiceTypeAuto = "auto"
	ToolChoiceTypeAny  = "any"
	ToolChoiceTypeTool = "tool"
	ToolChoiceTypeNone = "none"
)

// ToolChoice steers tool selection. Name is set when Type is "tool".
type ToolChoice struct {
	Type                   string `json:"type"`
	Name                   string `json:"name,omitempty"`
	DisableParallelToolUse *bool  `json:"disable_parallel_tool_use,omitempty"`
}
