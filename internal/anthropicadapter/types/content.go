package types

import (
	"encoding/json"
	"strings"
)

// Content block discriminators.
const (
	ContentBlockTypeText       = "text"
	ContentBlockTypeThinking   = "thinking"
	ContentBlockTypeToolUse    = "tool_use"
	ContentBlockTypeToolResult = "tool_result"
	ContentBlockTypeImage      = "image"
)

// ContentBlock is the tagged union covering every block kind that can appear
// in message content. Type selects the populated fields; the rest are
// omitted on the wire. Text and Thinking are pointers so a present but empty
// value survives a round trip.
type ContentBlock struct {
	Type string `json:"type"`

	// text
	Text *string `json:"text,omitempty"`

	// thinking
	Thinking  *string `json:"thinking,omitempty"`
	Signature string  `json:"signature,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`

	// image
	Source *ImageSource `json:"source,omitempty"`
}

// ImageSource carries inline image data ("base64") or a fetchable location
// ("url").
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentBlockTypeText, Text: &text}
}

func NewThinkingBlock(thinking string) ContentBlock {
	return ContentBlock{Type: ContentBlockTypeThinking, Thinking: &thinking}
}

// NewToolUseBlock constructs a tool_use block. Input must be a JSON object;
// empty input becomes {} because the field is mandatory on the wire.
func NewToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	return ContentBlock{Type: ContentBlockTypeToolUse, ID: id, Name: name, Input: input}
}

// TextValue returns the text payload, or "" when absent.
func (b ContentBlock) TextValue() string {
	if b.Text == nil {
		return ""
	}
	return *b.Text
}

// ThinkingValue returns the thinking payload, or "" when absent.
func (b ContentBlock) ThinkingValue() string {
	if b.Thinking == nil {
		return ""
	}
	return *b.Thinking
}

// ToolResultText flattens a tool_result's content union, plain string or
// block array, into text. Text blocks join with newlines; other block kinds
// are ignored. Undecodable content is returned raw so nothing is lost.
func (b ContentBlock) ToolResultText() string {
	if len(b.Content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(b.Content, &s); err == nil {
		return s
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(b.Content, &blocks); err != nil {
		return string(b.Content)
	}
	var parts []string
	for _, inner := range blocks {
		if inner.Type == ContentBlockTypeText {
			parts = append(parts, inner.TextValue())
		}
	}
	return strings.Join(parts, "\n")
}
