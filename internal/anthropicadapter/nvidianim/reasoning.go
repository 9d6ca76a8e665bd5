package nvidianim

import "strings"

const (
	thinkOpenTag  = "<think>"
	thinkCloseTag = "</think>"

	// sepThinkOpenTag is the open tag preceded by the blank-line separator
	// the serializer inserts between segments. The separator belongs to the
	// tag, not to the text, so it must be held back with it.
	sepThinkOpenTag = "\n\n" + thinkOpenTag
)

// span is one ordered fragment of decoded assistant output. A thinking span
// with boundary set opens a new thinking block even when its text is empty;
// text spans carry no boundary because consecutive plain text always belongs
// to one block.
type span struct {
	thinking bool
	boundary bool
	text     string
}

type extractorState int

const (
	statePlain extractorState = iota
	stateThinking
)

// thinkExtractor incrementally splits model output into plain text and
// <think>…</think> spans. It is fragment-boundary invariant: any partition
// of the input yields the same spans. The carry buffer holds the longest
// suffix that could still complete a tag, at most len("\n\n<think>")-1
// bytes, so memory stays constant regardless of stream length.
type thinkExtractor struct {
	state   extractorState
	carry   string
	skipSep bool
}

// Feed scans one fragment and returns the spans it completes. Held-back
// bytes surface on a later Feed or on Flush.
func (e *thinkExtractor) Feed(fragment string) []span {
	if fragment == "" {
		return nil
	}
	input := e.carry + fragment
	e.carry = ""
	var spans []span
	for input != "" {
		switch e.state {
		case statePlain:
			input = e.scanPlain(input, &spans)
		case stateThinking:
			input = e.scanThinking(input, &spans)
		}
	}
	return spans
}

func (e *thinkExtractor) scanPlain(input string, spans *[]span) string {
	if e.skipSep {
		// One blank-line separator directly after </think> is a
		// serialization artifact, not content.
		switch {
		case strings.HasPrefix(input, "\n\n"):
			e.skipSep = false
			input = input[2:]
			if input == "" {
				return ""
			}
		case input == "\n":
			e.carry = input
			return ""
		default:
			e.skipSep = false
		}
	}
	if idx := strings.Index(input, thinkOpenTag); idx >= 0 {
		if text := strings.TrimSuffix(input[:idx], "\n\n"); text != "" {
			*spans = append(*spans, span{text: text})
		}
		*spans = append(*spans, span{thinking: true, boundary: true})
		e.state = stateThinking
		return input[idx+len(thinkOpenTag):]
	}
	keep := ambiguousSuffix(input, sepThinkOpenTag, thinkOpenTag)
	if text := input[:len(input)-keep]; text != "" {
		*spans = append(*spans, span{text: text})
	}
	e.carry = input[len(input)-keep:]
	return ""
}

func (e *thinkExtractor) scanThinking(input string, spans *[]span) string {
	if idx := strings.Index(input, thinkCloseTag); idx >= 0 {
		if idx > 0 {
			*spans = append(*spans, span{thinking: true, text: input[:idx]})
		}
		e.state = statePlain
		e.skipSep = true
		return input[idx+len(thinkCloseTag):]
	}
	keep := ambiguousSuffix(input, thinkCloseTag)
	if text := input[:len(input)-keep]; text != "" {
		*spans = append(*spans, span{thinking: true, text: text})
	}
	e.carry = input[len(input)-keep:]
	return ""
}

// Flush drains held-back input at end of stream. An unterminated <think>
// closes implicitly, so inside a thinking span the remainder, including a
// partial close tag, is thinking content; outside, a partial open tag is
// plain text.
func (e *thinkExtractor) Flush() []span {
	var spans []span
	if e.carry != "" {
		spans = append(spans, span{thinking: e.state == stateThinking, text: e.carry})
		e.carry = ""
	}
	e.skipSep = false
	return spans
}

// ambiguousSuffix returns the length of the longest suffix of s that is a
// proper prefix of one of the patterns: input that cannot be emitted yet
// because later bytes could complete a tag.
func ambiguousSuffix(s string, patterns ...string) int {
	longest := 0
	for _, p := range patterns {
		limit := min(len(s), len(p)-1)
		for k := limit; k > longest; k-- {
			if s[len(s)-k:] == p[:k] {
				longest = k
				break
			}
		}
	}
	return longest
}
