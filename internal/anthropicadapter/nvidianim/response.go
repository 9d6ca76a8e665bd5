package nvidianim

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"github.com/florianilch/nimbridge/internal/anthropicadapter/types"
)

// toStopReason maps the backend finish reason onto the Messages vocabulary.
// content_filter becomes refusal, the closest Anthropic semantic; anything
// unknown degrades to end_turn rather than failing the response.
func toStopReason(reason openai.FinishReason) string {
	switch reason {
	case openai.FinishReasonStop:
		return types.StopReasonEndTurn
	case openai.FinishReasonLength:
		return types.StopReasonMaxTokens
	case openai.FinishReasonToolCalls:
		return types.StopReasonToolUse
	case openai.FinishReasonContentFilter:
		return types.StopReasonRefusal
	default:
		return types.StopReasonEndTurn
	}
}

// toResponse synthesizes the buffered Messages response from a completed
// chat completion. Model echoes the client-requested id; the backend's
// completion id never leaks, responses always carry a synthesized one.
func toResponse(ctx context.Context, resp openai.ChatCompletionResponse, requestedModel string) *types.CreateMessageResponse {
	out := &types.CreateMessageResponse{
		ID:      newMessageID(),
		Type:    "message",
		Role:    types.RoleAssistant,
		Model:   requestedModel,
		Content: []types.ContentBlock{},
		Usage:   toUsage(resp.Usage),
	}

	stop := types.StopReasonEndTurn
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		out.Content = decodeAssistantContent(ctx, choice.Message)
		stop = toStopReason(choice.FinishReason)
		if stop == types.StopReasonEndTurn && hasToolUse(out.Content) {
			stop = types.StopReasonToolUse
		}
	}
	out.StopReason = &stop

	if out.Usage.OutputTokens == 0 {
		out.Usage.OutputTokens = approximateTokens(contentChars(out.Content))
	}
	return out
}

// decodeAssistantContent rebuilds ordered content blocks from one assistant
// message: native reasoning first, structure recovered from the content
// string next, structured tool calls last.
func decodeAssistantContent(ctx context.Context, msg openai.ChatCompletionMessage) []types.ContentBlock {
	var dec contentDecoder
	deltas := dec.FeedReasoning(ctx, msg.ReasoningContent)
	deltas = append(deltas, dec.Feed(ctx, msg.Content)...)
	deltas = append(deltas, dec.Flush(ctx)...)

	blocks := assembleBlocks(deltas)
	for _, tc := range msg.ToolCalls {
		blocks = append(blocks, types.NewToolUseBlock(
			newToolUseID(),
			tc.Function.Name,
			structuredArguments(ctx, tc.Function.Name, tc.Function.Arguments),
		))
	}
	return blocks
}

func hasToolUse(blocks []types.ContentBlock) bool {
	for _, b := range blocks {
		if b.Type == types.ContentBlockTypeToolUse {
			return true
		}
	}
	return false
}

// newMessageID mints a fresh Messages id in the msg_ convention.
func newMessageID() string {
	return "msg_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// newToolUseID mints an id for recovered and structured tool invocations.
func newToolUseID() string {
	return "toolu_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}
