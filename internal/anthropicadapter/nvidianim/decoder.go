package nvidianim

import (
	"context"
	"strings"

	"github.com/florianilch/nimbridge/internal/anthropicadapter/types"
)

type blockKind int

const (
	blockNone blockKind = iota - 1
	blockText
	blockThinking
	blockToolUse
)

// blockDelta is one increment of synthesized content. Text deltas extend the
// current text block, opening one when needed; a thinking delta with
// boundary opens a fresh thinking block; a tool delta is always one complete
// block.
type blockDelta struct {
	kind     blockKind
	boundary bool
	text     string
	tool     *recoveredToolCall
}

// contentDecoder composes the think-tag extractor with the tool-call
// scanner: thinking spans bypass the scanner and abort any pending
// candidate, plain text feeds it. Both synthesis paths consume the
// resulting ordered delta stream.
type contentDecoder struct {
	ext  thinkExtractor
	scan toolCallScanner

	reasoningOpen bool
}

// Feed ingests one fragment of the backend content channel.
func (d *contentDecoder) Feed(ctx context.Context, fragment string) []blockDelta {
	if fragment == "" {
		return nil
	}
	d.reasoningOpen = false
	var deltas []blockDelta
	for _, sp := range d.ext.Feed(fragment) {
		deltas = append(deltas, d.consumeSpan(ctx, sp)...)
	}
	return deltas
}

// FeedReasoning ingests the backend's native reasoning side channel.
// Consecutive reasoning fragments form one thinking block; interleaved
// content splits it.
func (d *contentDecoder) FeedReasoning(ctx context.Context, fragment string) []blockDelta {
	if fragment == "" {
		return nil
	}
	deltas := d.scan.Abort(ctx)
	if !d.reasoningOpen {
		d.reasoningOpen = true
		deltas = append(deltas, blockDelta{kind: blockThinking, boundary: true})
	}
	return append(deltas, blockDelta{kind: blockThinking, text: fragment})
}

// Abort demotes any pending tool-call candidate, for callers whose input
// switches to a channel the scanner never sees.
func (d *contentDecoder) Abort(ctx context.Context) []blockDelta {
	return d.scan.Abort(ctx)
}

// Flush drains both stages at end of stream.
func (d *contentDecoder) Flush(ctx context.Context) []blockDelta {
	var deltas []blockDelta
	for _, sp := range d.ext.Flush() {
		deltas = append(deltas, d.consumeSpan(ctx, sp)...)
	}
	return append(deltas, d.scan.Flush(ctx)...)
}

func (d *contentDecoder) consumeSpan(ctx context.Context, sp span) []blockDelta {
	if sp.thinking {
		deltas := d.scan.Abort(ctx)
		if sp.boundary {
			deltas = append(deltas, blockDelta{kind: blockThinking, boundary: true})
		}
		if sp.text != "" {
			deltas = append(deltas, blockDelta{kind: blockThinking, text: sp.text})
		}
		return deltas
	}
	return d.scan.Feed(ctx, sp.text)
}

// assembleBlocks folds a delta stream into ordered content blocks. Empty
// text accumulations drop out; thinking blocks survive empty because an
// explicit <think></think> pair is still a block.
func assembleBlocks(deltas []blockDelta) []types.ContentBlock {
	blocks := []types.ContentBlock{}
	current := blockNone
	thinkingOpen := false
	var acc strings.Builder

	flush := func() {
		switch {
		case current == blockText && acc.Len() > 0:
			blocks = append(blocks, types.NewTextBlock(acc.String()))
		case current == blockThinking && thinkingOpen:
			blocks = append(blocks, types.NewThinkingBlock(acc.String()))
		}
		acc.Reset()
		thinkingOpen = false
		current = blockNone
	}

	for _, d := range deltas {
		switch d.kind {
		case blockToolUse:
			flush()
			blocks = append(blocks, types.NewToolUseBlock(newToolUseID(), d.tool.name, d.tool.arguments))
		case blockThinking:
			if current != blockThinking || d.boundary {
				flush()
				current = blockThinking
				thinkingOpen = true
			}
			acc.WriteString(d.text)
		case blockText:
			if current != blockText {
				flush()
				current = blockText
			}
			acc.WriteString(d.text)
		}
	}
	flush()
	return blocks
}
