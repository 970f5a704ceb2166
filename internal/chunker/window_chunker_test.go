package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/millionx-hackathon/educational-voice-agent/internal/domain"
)

func newDefault() *WindowChunker {
	return NewWindowChunker(DefaultSize, DefaultOverlap, DefaultLookback, DefaultMinChars, DefaultMaxChunks)
}

func sentences(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Sentence %d explains how a computer network moves data.  \n", i)
	}
	return b.String()
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"blank", " \n\t ", ""},
		{"collapse", "a  b\n\nc\td", "a b c d"},
		{"trim", "  hello world  ", "hello world"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Fatalf("Normalize(%q)=%q want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitBlankInput(t *testing.T) {
	c := newDefault()
	for _, in := range []string{"", "   ", "\n\n\t"} {
		if spans := c.Split(in); len(spans) != 0 {
			t.Fatalf("Split(%q) returned %d spans", in, len(spans))
		}
	}
}

func TestSplitBelowFloor(t *testing.T) {
	c := newDefault()
	in := strings.Repeat("x", DefaultMinChars-1)
	if spans := c.Split(in); len(spans) != 0 {
		t.Fatalf("expected no spans for %d chars, got %d", len(in), len(spans))
	}
}

func TestSplitExactlyWindow(t *testing.T) {
	c := newDefault()
	in := strings.Repeat("a", DefaultSize)
	spans := c.Split(in)
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Text != in {
		t.Fatalf("span text mismatch")
	}
}

func TestSplitThreeThousandChars(t *testing.T) {
	c := newDefault()
	in := []rune(Normalize(sentences(200)))[:3000]
	spans := c.Split(string(in))
	if len(spans) < 3 {
		t.Fatalf("expected at least 3 spans, got %d", len(spans))
	}
	for i, s := range spans {
		if l := len([]rune(s.Text)); l > DefaultSize {
			t.Fatalf("span %d has %d chars", i, l)
		}
		if i == 0 {
			continue
		}
		overlap := spans[i-1].End - s.Start
		if overlap < 0 || overlap > DefaultOverlap {
			t.Fatalf("span %d overlaps previous by %d", i, overlap)
		}
		shared := string(in[s.Start:spans[i-1].End])
		if !strings.HasSuffix(spans[i-1].Text, shared) || !strings.HasPrefix(s.Text, shared) {
			t.Fatalf("span %d does not share %q with its neighbour", i, shared)
		}
	}
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	c := newDefault()
	spans := c.Split(sentences(100))
	if len(spans) < 2 {
		t.Fatalf("expected several spans, got %d", len(spans))
	}
	for i, s := range spans[:len(spans)-1] {
		if !strings.HasSuffix(s.Text, ".") {
			t.Fatalf("span %d does not end on a sentence: %q", i, s.Text[len(s.Text)-20:])
		}
	}
}

// assertCoverage checks that spans reconstruct the normalized input once
// overlaps are removed.
func assertCoverage(t *testing.T, c *WindowChunker, input string) []Span {
	t.Helper()
	normalized := []rune(Normalize(input))
	spans := c.Split(input)
	if len(normalized) < c.minChars {
		return spans
	}
	if len(spans) == 0 {
		t.Fatalf("no spans for %d chars", len(normalized))
	}
	var rebuilt []rune
	cursor := 0
	for i, s := range spans {
		if s.Text != string(normalized[s.Start:s.End]) {
			t.Fatalf("span %d text does not match offsets", i)
		}
		if len([]rune(s.Text)) < c.minChars {
			t.Fatalf("span %d below floor: %d", i, len([]rune(s.Text)))
		}
		if i > 0 && s.Start <= spans[i-1].Start {
			t.Fatalf("span %d does not advance: %d <= %d", i, s.Start, spans[i-1].Start)
		}
		if s.Start > cursor {
			gap := string(normalized[cursor:s.Start])
			if strings.TrimSpace(gap) != "" {
				t.Fatalf("span %d leaves uncovered text %q", i, gap)
			}
			rebuilt = append(rebuilt, normalized[cursor:s.Start]...)
			cursor = s.Start
		}
		if s.End > cursor {
			rebuilt = append(rebuilt, normalized[cursor:s.End]...)
			cursor = s.End
		}
	}
	if string(rebuilt) != string(normalized[:cursor]) || cursor != len(normalized) {
		t.Fatalf("reconstruction covers %d of %d runes", cursor, len(normalized))
	}
	return spans
}

func TestSplitCoverage(t *testing.T) {
	inputs := map[string]string{
		"prose":        sentences(321),
		"no-spaces":    strings.Repeat("abcdefghij", 777),
		"terminators":  strings.Repeat(".", 4321),
		"questions":    strings.Repeat("Why? ", 999),
		"unicode":      strings.Repeat("তথ্য ও যোগাযোগ প্রযুক্তি। কম্পিউটার কী? ", 150),
		"short-tail":   strings.Repeat("word ", 210) + "end.",
		"mixed-spaces": strings.Repeat("alpha \t beta\n\ngamma. ", 400),
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			assertCoverage(t, newDefault(), in)
		})
	}
}

func TestSplitTerminatesOnTightConfigs(t *testing.T) {
	configs := []*WindowChunker{
		NewWindowChunker(10, 9, 10, 1, 0),
		NewWindowChunker(60, 50, 60, 5, 0),
		NewWindowChunker(5, 4, 5, 1, 0),
	}
	in := strings.Repeat("A. B! C? ", 300)
	for i, c := range configs {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			assertCoverage(t, c, in)
		})
	}
}

func TestSplitChunkCap(t *testing.T) {
	c := NewWindowChunker(100, 20, 10, 10, 7)
	spans := c.Split(sentences(500))
	if len(spans) != 7 {
		t.Fatalf("expected cap of 7 spans, got %d", len(spans))
	}
}

func TestChunkStampsMetadata(t *testing.T) {
	c := newDefault()
	doc := domain.Document{ID: "doc-1", SourceName: "ict.pdf", Content: sentences(120)}
	passages, err := c.Chunk(doc)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(passages) < 2 {
		t.Fatalf("expected several passages, got %d", len(passages))
	}
	for i, p := range passages {
		if p.Index != i {
			t.Fatalf("passage %d has index %d", i, p.Index)
		}
		if p.DocumentID != "doc-1" || p.SourceName != "ict.pdf" {
			t.Fatalf("passage %d metadata: %+v", i, p)
		}
		if p.TotalChunks != len(passages) {
			t.Fatalf("passage %d total=%d want %d", i, p.TotalChunks, len(passages))
		}
	}
}

func TestChunkEmptyDocument(t *testing.T) {
	passages, err := newDefault().Chunk(domain.Document{ID: "x", Content: "  "})
	if err != nil || passages != nil {
		t.Fatalf("expected nil, nil; got %v, %v", passages, err)
	}
}
