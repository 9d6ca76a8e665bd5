package nvidianim

import (
	"encoding/json"
	"testing"

	"github.com/sashabaranov/go-openai"

	"github.com/florianilch/nimbridge/internal/anthropicadapter/types"
)

func mustRequest(t *testing.T, raw string) types.CreateMessageRequest {
	t.Helper()
	var req types.CreateMessageRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("Failed to parse request: %v", err)
	}
	return req
}

func TestToBackendMessagesSystemPrompt(t *testing.T) {
	req := mustRequest(t, `{
		"model": "m", "max_tokens": 16,
		"system": "Be brief.",
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	msgs, err := toBackendMessages(req)
	if err != nil {
		t.Fatalf("toBackendMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != openai.ChatMessageRoleSystem || msgs[0].Content != "Be brief." {
		t.Errorf("system message = %+v", msgs[0])
	}
	if msgs[1].Role != openai.ChatMessageRoleUser || msgs[1].Content != "hi" {
		t.Errorf("user message = %+v", msgs[1])
	}
}

func TestToBackendMessagesSystemBlocks(t *testing.T) {
	req := mustRequest(t, `{
		"model": "m", "max_tokens": 16,
		"system": [{"type": "text", "text": "First."}, {"type": "text", "text": "Second."}],
		"messages": [{"role": "user", "content": "hi"}]
	}`)

	msgs, err := toBackendMessages(req)
	if err != nil {
		t.Fatalf("toBackendMessages failed: %v", err)
	}
	if msgs[0].Content != "First.\n\nSecond." {
		t.Errorf("system content = %q, want blocks joined by blank line", msgs[0].Content)
	}
}

func TestToBackendMessagesAssistantSerialization(t *testing.T) {
	req := mustRequest(t, `{
		"model": "m", "max_tokens": 16,
		"messages": [{"role": "assistant", "content": [
			{"type": "thinking", "thinking": "plan"},
			{"type": "text", "text": "answer"}
		]}]
	}`)

	msgs, err := toBackendMessages(req)
	if err != nil {
		t.Fatalf("toBackendMessages failed: %v", err)
	}
	if got, want := msgs[0].Content, "<think>plan</think>\n\nanswer"; got != want {
		t.Errorf("assistant content = %q, want %q", got, want)
	}
}

func TestToBackendMessagesToolCycle(t *testing.T) {
	req := mustRequest(t, `{
		"model": "m", "max_tokens": 16,
		"messages": [
			{"role": "user", "content": "What's the weather in Paris?"},
			{"role": "assistant", "content": [
				{"type": "text", "text": "Checking."},
				{"type": "tool_use", "id": "toolu_01", "name": "get_weather", "input": {"city":"Paris"}}
			]},
			{"role": "user", "content": [
				{"type": "tool_result", "tool_use_id": "toolu_01", "content": "Sunny, 22C"}
			]}
		]
	}`)

	msgs, err := toBackendMessages(req)
	if err != nil {
		t.Fatalf("toBackendMessages failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}

	assistant := msgs[1]
	if assistant.Content != "Checking." {
		t.Errorf("assistant content = %q", assistant.Content)
	}
	if len(assistant.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(assistant.ToolCalls))
	}
	call := assistant.ToolCalls[0]
	if call.ID != "toolu_01" || call.Function.Name != "get_weather" {
		t.Errorf("tool call = %+v", call)
	}
	if call.Function.Arguments != `{"city":"Paris"}` {
		t.Errorf("tool call arguments = %q", call.Function.Arguments)
	}

	result := msgs[2]
	if result.Role != openai.ChatMessageRoleTool {
		t.Errorf("tool result role = %q", result.Role)
	}
	if result.ToolCallID != "toolu_01" || result.Content != "Sunny, 22C" {
		t.Errorf("tool result = %+v", result)
	}
}

// Text preceding a tool result must stay in front of it.
func TestToBackendMessagesTextBeforeToolResult(t *testing.T) {
	req := mustRequest(t, `{
		"model": "m", "max_tokens": 16,
		"messages": [{"role": "user", "content": [
			{"type": "text", "text": "Please use this result:"},
			{"type": "tool_result", "tool_use_id": "toolu_02", "content": "42"}
		]}]
	}`)

	msgs, err := toBackendMessages(req)
	if err != nil {
		t.Fatalf("toBackendMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != openai.ChatMessageRoleUser || msgs[0].Content != "Please use this result:" {
		t.Errorf("first message = %+v, want user text", msgs[0])
	}
	if msgs[1].Role != openai.ChatMessageRoleTool || msgs[1].ToolCallID != "toolu_02" {
		t.Errorf("second message = %+v, want tool result", msgs[1])
	}
}

func TestToBackendMessagesToolResultBlocks(t *testing.T) {
	req := mustRequest(t, `{
		"model": "m", "max_tokens": 16,
		"messages": [{"role": "user", "content": [
			{"type": "tool_result", "tool_use_id": "toolu_03", "content": [
				{"type": "text", "text": "line one"},
				{"type": "text", "text": "line two"}
			]}
		]}]
	}`)

	msgs, err := toBackendMessages(req)
	if err != nil {
		t.Fatalf("toBackendMessages failed: %v", err)
	}
	if msgs[0].Content != "line one\nline two" {
		t.Errorf("tool result content = %q", msgs[0].Content)
	}
}

func TestToBackendMessagesImages(t *testing.T) {
	req := mustRequest(t, `{
		"model": "m", "max_tokens": 16,
		"messages": [{"role": "user", "content": [
			{"type": "text", "text": "what is this?"},
			{"type": "image", "source": {"type": "base64", "media_type": "image/png", "data": "aGk="}},
			{"type": "image", "source": {"type": "url", "url": "https://example.com/cat.png"}}
		]}]
	}`)

	msgs, err := toBackendMessages(req)
	if err != nil {
		t.Fatalf("toBackendMessages failed: %v", err)
	}
	parts := msgs[0].MultiContent
	if len(parts) != 3 {
		t.Fatalf("got %d parts, want 3", len(parts))
	}
	if parts[0].Type != openai.ChatMessagePartTypeText || parts[0].Text != "what is this?" {
		t.Errorf("part 0 = %+v", parts[0])
	}
	if got, want := parts[1].ImageURL.URL, "data:image/png;base64,aGk="; got != want {
		t.Errorf("part 1 url = %q, want %q", got, want)
	}
	if got, want := parts[2].ImageURL.URL, "https://example.com/cat.png"; got != want {
		t.Errorf("part 2 url = %q, want %q", got, want)
	}
}

func TestToBackendMessagesUnsupportedRole(t *testing.T) {
	req := mustRequest(t, `{
		"model": "m", "max_tokens": 16,
		"messages": [{"role": "developer", "content": "nope"}]
	}`)

	if _, err := toBackendMessages(req); err == nil {
		t.Fatal("expected error for unsupported role")
	}
}

// Serializing assistant blocks and re-extracting them must reproduce the
// original sequence for any alternation of text and thinking.
func TestAssistantContentRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		blocks []types.ContentBlock
	}{
		{
			name:   "thinking then text",
			blocks: []types.ContentBlock{types.NewThinkingBlock("plan"), types.NewTextBlock("answer")},
		},
		{
			name:   "text then thinking",
			blocks: []types.ContentBlock{types.NewTextBlock("so far"), types.NewThinkingBlock("reconsider")},
		},
		{
			name: "thinking sandwich",
			blocks: []types.ContentBlock{
				types.NewThinkingBlock("first"),
				types.NewTextBlock("middle"),
				types.NewThinkingBlock("second"),
			},
		},
		{
			name:   "adjacent thinking stays split",
			blocks: []types.ContentBlock{types.NewThinkingBlock("a"), types.NewThinkingBlock("b")},
		},
		{
			name:   "text only",
			blocks: []types.ContentBlock{types.NewTextBlock("just text")},
		},
		{
			name:   "thinking only",
			blocks: []types.ContentBlock{types.NewThinkingBlock("just thought")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := assistantMessage(tt.blocks)

			var d contentDecoder
			ctx := t.Context()
			deltas := d.Feed(ctx, msg.Content)
			deltas = append(deltas, d.Flush(ctx)...)
			got := assembleBlocks(deltas)

			want := make([]wantBlock, len(tt.blocks))
			for i, b := range tt.blocks {
				if b.Type == types.ContentBlockTypeThinking {
					want[i] = thinkingBlock(b.ThinkingValue())
				} else {
					want[i] = textBlock(b.TextValue())
				}
			}
			checkBlocks(t, got, want)
		})
	}
}
