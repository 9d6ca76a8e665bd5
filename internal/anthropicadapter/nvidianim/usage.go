package nvidianim

import (
	"github.com/sashabaranov/go-openai"

	"github.com/florianilch/nimbridge/internal/anthropicadapter/types"
)

// toUsage maps backend token accounting. Zeroes pass through; the caller
// decides whether to approximate.
func toUsage(u openai.Usage) types.Usage {
	return types.Usage{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
	}
}

// approximateTokens estimates a token count from characters for backends
// that omit usage. Four characters per token is the usual ratio for English
// text; anything non-empty counts as at least one token.
func approximateTokens(chars int) int {
	if chars <= 0 {
		return 0
	}
	if chars < 4 {
		return 1
	}
	return chars / 4
}

// contentChars counts the characters contributing to output tokens.
func contentChars(blocks []types.ContentBlock) int {
	n := 0
	for _, b := range blocks {
		switch b.Type {
		case types.ContentBlockTypeText:
			n += len(b.TextValue())
		case types.ContentBlockTypeThinking:
			n += len(b.ThinkingValue())
		case types.ContentBlockTypeToolUse:
			n += len(b.Name) + len(b.Input)
		}
	}
	return n
}
