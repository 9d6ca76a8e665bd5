package nvidianim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	toolCallOpenTag  = "<tool_call>"
	toolCallCloseTag = "</tool_call>"

	// maxCandidateBytes bounds how much text a single unterminated
	// candidate may buffer before it is demoted back to plain text.
	maxCandidateBytes = 256 * 1024
)

// recoveredToolCall is a structurally valid tool invocation recovered from
// plain model output.
type recoveredToolCall struct {
	name      string
	arguments json.RawMessage
}

// toolCallScanner recognizes the Hermes-style
// <tool_call>{"name":…,"arguments":…}</tool_call> convention inside the
// plain-text channel. Candidates buffer until the closing tag; anything that
// fails to complete or to parse demotes to literal text, so no output is
// ever dropped and recovery never fails a response.
type toolCallScanner struct {
	buffering bool
	buf       strings.Builder
	carry     string
}

// Feed scans one plain-text span and returns the deltas it completes.
func (s *toolCallScanner) Feed(ctx context.Context, text string) []blockDelta {
	if text == "" {
		return nil
	}
	input := s.carry + text
	s.carry = ""
	var deltas []blockDelta
	for input != "" {
		if s.buffering {
			input = s.scanCandidate(ctx, input, &deltas)
		} else {
			input = s.scanText(input, &deltas)
		}
	}
	return deltas
}

func (s *toolCallScanner) scanText(input string, deltas *[]blockDelta) string {
	if idx := strings.Index(input, toolCallOpenTag); idx >= 0 {
		if idx > 0 {
			*deltas = append(*deltas, blockDelta{kind: blockText, text: input[:idx]})
		}
		s.buffering = true
		s.buf.Reset()
		return input[idx+len(toolCallOpenTag):]
	}
	keep := ambiguousSuffix(input, toolCallOpenTag)
	if text := input[:len(input)-keep]; text != "" {
		*deltas = append(*deltas, blockDelta{kind: blockText, text: text})
	}
	s.carry = input[len(input)-keep:]
	return ""
}

func (s *toolCallScanner) scanCandidate(ctx context.Context, input string, deltas *[]blockDelta) string {
	idx := strings.Index(input, toolCallCloseTag)
	if idx < 0 {
		keep := ambiguousSuffix(input, toolCallCloseTag)
		s.buf.WriteString(input[:len(input)-keep])
		s.carry = input[len(input)-keep:]
		if s.buf.Len() > maxCandidateBytes {
			slog.WarnContext(ctx, "tool call candidate exceeded buffer limit, demoting to text",
				"limit_bytes", maxCandidateBytes)
			s.demote(deltas)
		}
		return ""
	}

	s.buf.WriteString(input[:idx])
	payload := s.buf.String()
	s.buffering = false
	s.buf.Reset()

	call, err := parseToolCall(payload)
	if err != nil {
		slog.WarnContext(ctx, "malformed tool call demoted to text",
			"error", err, "payload_bytes", len(payload))
		*deltas = append(*deltas, blockDelta{kind: blockText, text: toolCallOpenTag + payload + toolCallCloseTag})
	} else {
		*deltas = append(*deltas, blockDelta{kind: blockToolUse, boundary: true, tool: call})
	}
	return input[idx+len(toolCallCloseTag):]
}

func (s *toolCallScanner) demote(deltas *[]blockDelta) {
	*deltas = append(*deltas, blockDelta{kind: blockText, text: toolCallOpenTag + s.buf.String()})
	s.buffering = false
	s.buf.Reset()
}

// Abort demotes whatever is pending. Called when another channel, a thinking
// span or a structured tool call, interrupts a candidate that can no longer
// complete.
func (s *toolCallScanner) Abort(ctx context.Context) []blockDelta {
	var deltas []blockDelta
	switch {
	case s.buffering:
		deltas = append(deltas, blockDelta{kind: blockText, text: toolCallOpenTag + s.buf.String() + s.carry})
		s.buffering = false
		s.buf.Reset()
		s.carry = ""
	case s.carry != "":
		deltas = append(deltas, blockDelta{kind: blockText, text: s.carry})
		s.carry = ""
	}
	return deltas
}

// Flush demotes anything still pending at end of stream.
func (s *toolCallScanner) Flush(ctx context.Context) []blockDelta {
	return s.Abort(ctx)
}

// parseToolCall validates a candidate payload. The strict form is
// {"name": string, "arguments": object}; arguments may also arrive as a
// string containing an encoded object, which some models emit, and is
// unwrapped. Anything else errors so the caller can demote.
func parseToolCall(payload string) (*recoveredToolCall, error) {
	trimmed := strings.TrimSpace(payload)
	if !gjson.Valid(trimmed) {
		return nil, errors.New("payload is not valid JSON")
	}
	root := gjson.Parse(trimmed)
	if !root.IsObject() {
		return nil, errors.New("payload is not a JSON object")
	}
	name := root.Get("name")
	if name.Type != gjson.String || name.Str == "" {
		return nil, errors.New("missing tool name")
	}
	args := root.Get("arguments")
	var raw string
	switch {
	case !args.Exists() || args.Type == gjson.Null:
		raw = "{}"
	case args.IsObject():
		raw = args.Raw
	case args.Type == gjson.String && gjson.Valid(args.Str) && gjson.Parse(args.Str).IsObject():
		raw = args.Str
	default:
		return nil, fmt.Errorf("tool %q arguments are not an object", name.Str)
	}
	return &recoveredToolCall{name: name.Str, arguments: json.RawMessage(raw)}, nil
}

// structuredArguments sanitizes the arguments of a backend-native tool call.
// Invalid JSON degrades to an empty object rather than failing the response.
func structuredArguments(ctx context.Context, toolName, arguments string) json.RawMessage {
	trimmed := strings.TrimSpace(arguments)
	if trimmed == "" {
		return json.RawMessage(`{}`)
	}
	if gjson.Valid(trimmed) && gjson.Parse(trimmed).IsObject() {
		return json.RawMessage(trimmed)
	}
	slog.WarnContext(ctx, "discarding malformed structured tool arguments", "tool", toolName)
	return json.RawMessage(`{}`)
}
