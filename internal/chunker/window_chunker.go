package chunker

import (
	"regexp"
	"strings"

	"github.com/millionx-hackathon/educational-voice-agent/internal/domain"
)

const (
	DefaultSize      = 1000
	DefaultOverlap   = 200
	DefaultLookback  = 100
	DefaultMinChars  = 50
	DefaultMaxChunks = 10000
)

// Span is one chunk of normalized text. Start and End are rune offsets.
type Span struct {
	Text  string
	Start int
	End   int
}

// WindowChunker splits text into overlapping fixed-size windows, preferring to
// end each window on a sentence terminator close to the window boundary.
type WindowChunker struct {
	size      int
	overlap   int
	lookback  int
	minChars  int
	maxChunks int
}

// NewWindowChunker builds a chunker. Non-positive arguments select the defaults.
func NewWindowChunker(size, overlap, lookback, minChars, maxChunks int) *WindowChunker {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap <= 0 || overlap >= size {
		overlap = size / 5
	}
	if lookback <= 0 || lookback > size {
		lookback = size / 10
	}
	if minChars <= 0 {
		minChars = DefaultMinChars
	}
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}
	return &WindowChunker{
		size:      size,
		overlap:   overlap,
		lookback:  lookback,
		minChars:  minChars,
		maxChunks: maxChunks,
	}
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize collapses whitespace runs to a single space and trims the ends.
func Normalize(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

func (c *WindowChunker) Chunk(document domain.Document) ([]domain.Passage, error) {
	spans := c.Split(document.Content)
	if len(spans) == 0 {
		return nil, nil
	}
	passages := make([]domain.Passage, len(spans))
	for i, s := range spans {
		passages[i] = domain.Passage{
			DocumentID:  document.ID,
			Index:       i,
			Text:        s.Text,
			SourceName:  document.SourceName,
			TotalChunks: len(spans),
			Start:       s.Start,
			End:         s.End,
		}
	}
	return passages, nil
}

// Split normalizes text and cuts it into spans. It stops early once the
// chunk cap is reached and returns what it has.
func (c *WindowChunker) Split(text string) []Span {
	runes := []rune(Normalize(text))
	n := len(runes)
	if n == 0 {
		return nil
	}
	var spans []Span
	start := 0
	for start < n && len(spans) < c.maxChunks {
		end := start + c.size
		if end > n {
			end = n
		}
		if end < n {
			if cut := c.sentenceBoundary(runes, start, end); cut > 0 {
				end = cut
			}
		}
		if s, ok := c.span(runes, start, end); ok {
			spans = append(spans, s)
		}
		if end >= n {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return spans
}

// sentenceBoundary returns the offset just past the last terminator inside
// the trailing lookback region of [start, end), or -1.
func (c *WindowChunker) sentenceBoundary(runes []rune, start, end int) int {
	from := end - c.lookback
	if from <= start {
		from = start + 1
	}
	for i := end - 1; i >= from; i-- {
		switch runes[i] {
		case '.', '?', '!':
			return i + 1
		}
	}
	return -1
}

func (c *WindowChunker) span(runes []rune, start, end int) (Span, bool) {
	for start < end && runes[start] == ' ' {
		start++
	}
	for end > start && runes[end-1] == ' ' {
		end--
	}
	if end-start < c.minChars || end == start {
		return Span{}, false
	}
	return Span{Text: string(runes[start:end]), Start: start, End: end}, true
}
