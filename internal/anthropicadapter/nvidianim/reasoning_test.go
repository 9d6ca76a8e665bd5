package nvidianim

import (
	"slices"
	"testing"
)

// segment is a folded view of extractor output: consecutive text spans
// coalesce, thinking spans coalesce until a boundary starts a new segment.
// Tests compare folded forms because fragmentation may split spans but must
// never move a boundary.
type segment struct {
	thinking bool
	text     string
}

func foldSpans(spans []span) []segment {
	var segments []segment
	for _, sp := range spans {
		if sp.thinking && sp.boundary {
			segments = append(segments, segment{thinking: true, text: sp.text})
			continue
		}
		if n := len(segments); n > 0 && segments[n-1].thinking == sp.thinking {
			segments[n-1].text += sp.text
			continue
		}
		segments = append(segments, segment{thinking: sp.thinking, text: sp.text})
	}
	return segments
}

func extractSegments(fragments ...string) []segment {
	var e thinkExtractor
	var spans []span
	for _, f := range fragments {
		spans = append(spans, e.Feed(f)...)
	}
	return foldSpans(append(spans, e.Flush()...))
}

func TestThinkExtractor(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []segment
	}{
		{
			name:  "leading thinking",
			input: "<think>Let me think.</think>\n\nThe answer is 4.",
			want:  []segment{{true, "Let me think."}, {false, "The answer is 4."}},
		},
		{
			name:  "adjacent spans without separators",
			input: "<think>first</think>middle<think>second</think>",
			want:  []segment{{true, "first"}, {false, "middle"}, {true, "second"}},
		},
		{
			name:  "text before thinking",
			input: "Sure.\n\n<think>checking</think>\n\nDone.",
			want:  []segment{{false, "Sure."}, {true, "checking"}, {false, "Done."}},
		},
		{
			name:  "empty thinking block survives",
			input: "<think></think>ok",
			want:  []segment{{true, ""}, {false, "ok"}},
		},
		{
			name:  "no tags",
			input: "plain text only",
			want:  []segment{{false, "plain text only"}},
		},
		{
			name:  "unterminated thinking closes implicitly",
			input: "<think>partial thought",
			want:  []segment{{true, "partial thought"}},
		},
		{
			name:  "partial close tag at end of stream stays thinking",
			input: "<think>trailing</thi",
			want:  []segment{{true, "trailing</thi"}},
		},
		{
			name:  "partial open tag at end of stream stays text",
			input: "almost <thin",
			want:  []segment{{false, "almost <thin"}},
		},
		{
			name:  "lookalike tag is text",
			input: "a <thinker> tag",
			want:  []segment{{false, "a <thinker> tag"}},
		},
		{
			name:  "stray close tag is text",
			input: "</think> nothing was open",
			want:  []segment{{false, "</think> nothing was open"}},
		},
		{
			name:  "angle brackets in prose",
			input: "5 < 6 and <b>bold</b>",
			want:  []segment{{false, "5 < 6 and <b>bold</b>"}},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractSegments(tt.input)
			if !slices.Equal(got, tt.want) {
				t.Errorf("extractSegments(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestThinkExtractorSeparators(t *testing.T) {
	tests := []struct {
		name      string
		fragments []string
		want      []segment
	}{
		{
			name:      "one blank line after close is stripped",
			fragments: []string{"<think>x</think>\n\nY"},
			want:      []segment{{true, "x"}, {false, "Y"}},
		},
		{
			name:      "single newline after close is content",
			fragments: []string{"<think>x</think>\nY"},
			want:      []segment{{true, "x"}, {false, "\nY"}},
		},
		{
			name:      "only one blank line after close is stripped",
			fragments: []string{"<think>x</think>\n\n\nY"},
			want:      []segment{{true, "x"}, {false, "\nY"}},
		},
		{
			name:      "one blank line before open is stripped",
			fragments: []string{"A\n\n\n\n<think>x</think>"},
			want:      []segment{{false, "A\n\n"}, {true, "x"}},
		},
		{
			name:      "separator split across fragments after close",
			fragments: []string{"<think>x</think>", "\n", "\nY"},
			want:      []segment{{true, "x"}, {false, "Y"}},
		},
		{
			name:      "separator split across fragments before open",
			fragments: []string{"before\n", "\n<think>x</think>"},
			want:      []segment{{false, "before"}, {true, "x"}},
		},
		{
			name:      "lone newline at end of stream is content",
			fragments: []string{"<think>x</think>", "\n"},
			want:      []segment{{true, "x"}, {false, "\n"}},
		},
		{
			name:      "trailing blank line without tag is content",
			fragments: []string{"text ends here\n\n"},
			want:      []segment{{false, "text ends here\n\n"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractSegments(tt.fragments...)
			if !slices.Equal(got, tt.want) {
				t.Errorf("extractSegments(%q) = %v, want %v", tt.fragments, got, tt.want)
			}
		})
	}
}

// Fragmentation must never change the result: splitting the input at any
// byte boundary yields the same segments as feeding it whole.
func TestThinkExtractorFragmentationInvariance(t *testing.T) {
	inputs := []string{
		"<think>Let me think.</think>\n\nThe answer is 4.",
		"Sure.\n\n<think>a</think>\n\nmid\n\n<think>b</think>\n\nend",
		"<think>first</think>middle<think>second</think>",
		"<think></think>ok",
		"no tags at all",
		"<think>unterminated",
		"almost <thin",
		"<think>x</think>\nsingle newline kept",
		"text ending in separator\n\n",
		"</think> stray close <think>then open</think>",
	}
	for _, input := range inputs {
		want := extractSegments(input)

		for cut := 0; cut <= len(input); cut++ {
			got := extractSegments(input[:cut], input[cut:])
			if !slices.Equal(got, want) {
				t.Errorf("split at %d of %q = %v, want %v", cut, input, got, want)
			}
		}

		bytewise := make([]string, len(input))
		for i := range input {
			bytewise[i] = input[i : i+1]
		}
		if got := extractSegments(bytewise...); !slices.Equal(got, want) {
			t.Errorf("byte-wise feed of %q = %v, want %v", input, got, want)
		}
	}
}

func TestAmbiguousSuffix(t *testing.T) {
	tests := []struct {
		s    string
		want int
	}{
		{"", 0},
		{"text", 0},
		{"text<", 1},
		{"text<think", 6},
		{"text<think>", 0}, // complete tag is not ambiguous
		{"text\n", 1},
		{"text\n\n", 2},
		{"text\n\n<thi", 6},
		{"<think", 6},
		{"<<think", 6},
	}
	for _, tt := range tests {
		if got := ambiguousSuffix(tt.s, sepThinkOpenTag, thinkOpenTag); got != tt.want {
			t.Errorf("ambiguousSuffix(%q) = %d, want %d", tt.s, got, tt.want)
		}
	}
}
