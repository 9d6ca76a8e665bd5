package nvidianim

import (
	"context"
	"encoding/json"

	"github.com/sashabaranov/go-openai"

	"github.com/florianilch/nimbridge/internal/anthropicadapter/types"
)

// eventBuilder turns backend chunks into the ordered Messages event
// sequence. It owns the block discipline: message_start precedes everything,
// at most one block is open at a time, and block N stops before block N+1
// starts.
type eventBuilder struct {
	model string
	dec   contentDecoder

	started   bool
	openIndex int // -1 when no block is open
	openKind  blockKind
	nextIndex int

	sawToolUse          bool
	structuredToolIndex int // backend tool_calls index currently streaming, -1 none

	finishReason openai.FinishReason
	usage        *types.Usage
	outputChars  int
}

func newEventBuilder(model string) *eventBuilder {
	return &eventBuilder{model: model, openIndex: -1, structuredToolIndex: -1}
}

// feed ingests one backend chunk and returns the events it completes.
// Partial deltas for an open block may surface before the block completes;
// ordering between blocks never changes.
func (b *eventBuilder) feed(ctx context.Context, chunk openai.ChatCompletionStreamResponse) []*types.MessageStreamEvent {
	var events []*types.MessageStreamEvent

	// With stream_options.include_usage the final chunk carries usage and no
	// choices.
	if chunk.Usage != nil {
		u := toUsage(*chunk.Usage)
		b.usage = &u
	}
	if len(chunk.Choices) == 0 {
		return events
	}
	choice := chunk.Choices[0]
	if choice.FinishReason != "" {
		b.finishReason = choice.FinishReason
	}

	delta := choice.Delta
	if delta.ReasoningContent != "" {
		b.ensureStarted(&events)
		b.emitDeltas(&events, b.dec.FeedReasoning(ctx, delta.ReasoningContent))
	}
	if delta.Content != "" {
		b.ensureStarted(&events)
		b.emitDeltas(&events, b.dec.Feed(ctx, delta.Content))
	}
	for _, tc := range delta.ToolCalls {
		b.ensureStarted(&events)
		b.feedStructuredTool(ctx, &events, tc)
	}
	return events
}

// finish flushes the decoder, closes the open block and emits the
// message_delta / message_stop tail.
func (b *eventBuilder) finish(ctx context.Context) []*types.MessageStreamEvent {
	var events []*types.MessageStreamEvent
	b.ensureStarted(&events)
	b.emitDeltas(&events, b.dec.Flush(ctx))
	b.closeOpenBlock(&events)

	stop := toStopReason(b.finishReason)
	if stop == types.StopReasonEndTurn && b.sawToolUse {
		stop = types.StopReasonToolUse
	}
	usage := types.Usage{OutputTokens: approximateTokens(b.outputChars)}
	if b.usage != nil {
		usage = *b.usage
	}

	return append(events,
		&types.MessageStreamEvent{
			Type:  types.EventTypeMessageDelta,
			Delta: &types.EventDelta{StopReason: &stop},
			Usage: &usage,
		},
		&types.MessageStreamEvent{Type: types.EventTypeMessageStop},
	)
}

func (b *eventBuilder) ensureStarted(events *[]*types.MessageStreamEvent) {
	if b.started {
		return
	}
	b.started = true
	*events = append(*events, &types.MessageStreamEvent{
		Type: types.EventTypeMessageStart,
		Message: &types.CreateMessageResponse{
			ID:      newMessageID(),
			Type:    "message",
			Role:    types.RoleAssistant,
			Model:   b.model,
			Content: []types.ContentBlock{},
		},
	})
}

func (b *eventBuilder) emitDeltas(events *[]*types.MessageStreamEvent, deltas []blockDelta) {
	for _, d := range deltas {
		switch d.kind {
		case blockThinking:
			if b.openIndex < 0 || b.openKind != blockThinking || d.boundary {
				b.closeOpenBlock(events)
				b.openBlock(events, blockThinking)
			}
			if d.text != "" {
				b.emitTextualDelta(events, types.DeltaTypeThinking, d.text)
			}
		case blockText:
			if d.text == "" {
				continue
			}
			if b.openIndex < 0 || b.openKind != blockText {
				b.closeOpenBlock(events)
				b.openBlock(events, blockText)
			}
			b.emitTextualDelta(events, types.DeltaTypeText, d.text)
		case blockToolUse:
			b.closeOpenBlock(events)
			b.emitRecoveredTool(events, d.tool)
		}
	}
}

func (b *eventBuilder) emitTextualDelta(events *[]*types.MessageStreamEvent, deltaType, text string) {
	index := b.openIndex
	b.outputChars += len(text)
	delta := &types.EventDelta{Type: deltaType}
	switch deltaType {
	case types.DeltaTypeThinking:
		delta.Thinking = &text
	default:
		delta.Text = &text
	}
	*events = append(*events, &types.MessageStreamEvent{
		Type:  types.EventTypeContentBlockDelta,
		Index: &index,
		Delta: delta,
	})
}

func (b *eventBuilder) openBlock(events *[]*types.MessageStreamEvent, kind blockKind) {
	index := b.nextIndex
	b.nextIndex++
	b.openIndex = index
	b.openKind = kind

	var block types.ContentBlock
	if kind == blockThinking {
		block = types.NewThinkingBlock("")
	} else {
		block = types.NewTextBlock("")
	}
	*events = append(*events, &types.MessageStreamEvent{
		Type:         types.EventTypeContentBlockStart,
		Index:        &index,
		ContentBlock: &block,
	})
}

func (b *eventBuilder) closeOpenBlock(events *[]*types.MessageStreamEvent) {
	if b.openIndex < 0 {
		return
	}
	index := b.openIndex
	*events = append(*events, &types.MessageStreamEvent{
		Type:  types.EventTypeContentBlockStop,
		Index: &index,
	})
	b.openIndex = -1
	b.structuredToolIndex = -1
}

// emitRecoveredTool streams one complete recovered invocation: start with a
// placeholder input, the whole arguments object as a single
// input_json_delta, stop.
func (b *eventBuilder) emitRecoveredTool(events *[]*types.MessageStreamEvent, call *recoveredToolCall) {
	index := b.nextIndex
	b.nextIndex++
	b.sawToolUse = true

	block := types.NewToolUseBlock(newToolUseID(), call.name, json.RawMessage(`{}`))
	partial := string(call.arguments)
	b.outputChars += len(call.name) + len(partial)

	*events = append(*events,
		&types.MessageStreamEvent{Type: types.EventTypeContentBlockStart, Index: &index, ContentBlock: &block},
		&types.MessageStreamEvent{Type: types.EventTypeContentBlockDelta, Index: &index, Delta: &types.EventDelta{Type: types.DeltaTypeInputJSON, PartialJSON: &partial}},
		&types.MessageStreamEvent{Type: types.EventTypeContentBlockStop, Index: &index},
	)
}

// feedStructuredTool handles backend-native tool call streaming: the first
// fragment of an invocation carries id and name and opens the block,
// argument fragments follow as input_json_delta.
func (b *eventBuilder) feedStructuredTool(ctx context.Context, events *[]*types.MessageStreamEvent, tc openai.ToolCall) {
	idx := 0
	if tc.Index != nil {
		idx = *tc.Index
	}
	if b.openIndex < 0 || b.openKind != blockToolUse || b.structuredToolIndex != idx {
		// A half-built text candidate cannot complete once the backend
		// switches to structured calls.
		b.emitDeltas(events, b.dec.Abort(ctx))
		b.closeOpenBlock(events)

		index := b.nextIndex
		b.nextIndex++
		b.openIndex = index
		b.openKind = blockToolUse
		b.structuredToolIndex = idx
		b.sawToolUse = true

		block := types.NewToolUseBlock(newToolUseID(), tc.Function.Name, json.RawMessage(`{}`))
		*events = append(*events, &types.MessageStreamEvent{
			Type:         types.EventTypeContentBlockStart,
			Index:        &index,
			ContentBlock: &block,
		})
	}
	if tc.Function.Arguments != "" {
		index := b.openIndex
		partial := tc.Function.Arguments
		b.outputChars += len(partial)
		*events = append(*events, &types.MessageStreamEvent{
			Type:  types.EventTypeContentBlockDelta,
			Index: &index,
			Delta: &types.EventDelta{Type: types.DeltaTypeInputJSON, PartialJSON: &partial},
		})
	}
}
