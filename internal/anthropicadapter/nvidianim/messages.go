package nvidianim

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/florianilch/nimbridge/internal/anthropicadapter/types"
)

// toBackendMessages converts the Messages conversation into chat-completion
// form. The system prompt hoists to a leading system-role message, assistant
// structure re-serializes into the text conventions the decoder recognizes,
// and user tool results become tool-role messages.
func toBackendMessages(req types.CreateMessageRequest) ([]openai.ChatCompletionMessage, error) {
	var out []openai.ChatCompletionMessage

	system, err := req.SystemText()
	if err != nil {
		return nil, err
	}
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for i, msg := range req.Messages {
		blocks, err := msg.ContentBlocks()
		if err != nil {
			return nil, fmt.Errorf("messages[%d]: %w", i, err)
		}
		switch msg.Role {
		case types.RoleAssistant:
			out = append(out, assistantMessage(blocks))
		case types.RoleUser:
			out = append(out, userMessages(blocks)...)
		default:
			return nil, fmt.Errorf("messages[%d]: unsupported role %q", i, msg.Role)
		}
	}
	return out, nil
}

// assistantMessage re-serializes assistant blocks: thinking wraps in think
// tags, text passes verbatim, adjacent segments join with a blank line so
// extraction can split them again. Tool uses defer to tool_calls because the
// chat protocol keeps them outside content.
func assistantMessage(blocks []types.ContentBlock) openai.ChatCompletionMessage {
	var segments []string
	var toolCalls []openai.ToolCall
	for _, b := range blocks {
		switch b.Type {
		case types.ContentBlockTypeThinking:
			segments = append(segments, thinkOpenTag+b.ThinkingValue()+thinkCloseTag)
		case types.ContentBlockTypeText:
			if t := b.TextValue(); t != "" {
				segments = append(segments, t)
			}
		case types.ContentBlockTypeToolUse:
			toolCalls = append(toolCalls, openai.ToolCall{
				ID:   b.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      b.Name,
					Arguments: argumentsString(b.Input),
				},
			})
		}
	}
	return openai.ChatCompletionMessage{
		Role:      openai.ChatMessageRoleAssistant,
		Content:   strings.Join(segments, "\n\n"),
		ToolCalls: toolCalls,
	}
}

// userMessages splits user blocks into chat messages: pending text and
// images flush as a user message before each tool result, which must ride in
// its own tool-role message referencing the invocation id.
func userMessages(blocks []types.ContentBlock) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage
	var texts []string
	var images []openai.ChatMessagePart

	flush := func() {
		if len(texts) == 0 && len(images) == 0 {
			return
		}
		out = append(out, userMessage(texts, images))
		texts = nil
		images = nil
	}

	for _, b := range blocks {
		switch b.Type {
		case types.ContentBlockTypeText:
			if t := b.TextValue(); t != "" {
				texts = append(texts, t)
			}
		case types.ContentBlockTypeImage:
			if part, ok := imagePart(b.Source); ok {
				images = append(images, part)
			}
		case types.ContentBlockTypeToolResult:
			flush()
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    b.ToolResultText(),
				ToolCallID: b.ToolUseID,
			})
		}
	}
	flush()
	return out
}

func userMessage(texts []string, images []openai.ChatMessagePart) openai.ChatCompletionMessage {
	if len(images) == 0 {
		return openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: strings.Join(texts, "\n"),
		}
	}
	parts := make([]openai.ChatMessagePart, 0, len(texts)+len(images))
	for _, t := range texts {
		parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: t})
	}
	parts = append(parts, images...)
	return openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: parts,
	}
}

// imagePart converts an image source to an image_url part. Inline data
// becomes a data URL; url sources pass through.
func imagePart(src *types.ImageSource) (openai.ChatMessagePart, bool) {
	if src == nil {
		return openai.ChatMessagePart{}, false
	}
	var url string
	switch src.Type {
	case "base64":
		if src.MediaType == "" || src.Data == "" {
			return openai.ChatMessagePart{}, false
		}
		url = "data:" + src.MediaType + ";base64," + src.Data
	case "url":
		url = src.URL
	}
	if url == "" {
		return openai.ChatMessagePart{}, false
	}
	return openai.ChatMessagePart{
		Type:     openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{URL: url},
	}, true
}

// argumentsString renders tool_use input for the chat wire, which carries
// arguments as an encoded string.
func argumentsString(input json.RawMessage) string {
	if len(input) == 0 {
		return "{}"
	}
	return string(input)
}
