package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var (
	previewSentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+`)
	previewTokenRe    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// FrequencySummarizer builds an extractive preview of a document by ranking
// sentences on normalized word frequency, stopwords filtered.
type FrequencySummarizer struct {
	stopwords map[string]struct{}
	maxChars  int
}

// NewFrequencySummarizer creates a preview builder whose output is capped at
// maxChars runes (0 for no cap).
func NewFrequencySummarizer(maxChars int) *FrequencySummarizer {
	return &FrequencySummarizer{stopwords: defaultStopwords(), maxChars: maxChars}
}

// Preview returns up to maxSentences of the highest scoring sentences in
// their original order. Text without sentence terminators is returned trimmed.
func (s *FrequencySummarizer) Preview(text string, maxSentences int) string {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	sentences := previewSentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		return s.truncate(strings.Join(strings.Fields(text), " "))
	}

	tokenized := make([][]string, len(sentences))
	freq := map[string]float64{}
	maxF := 0.0
	for i, sent := range sentences {
		tokenized[i] = previewTokenRe.FindAllString(strings.ToLower(sent), -1)
		for _, tok := range tokenized[i] {
			if _, stop := s.stopwords[tok]; stop {
				continue
			}
			freq[tok]++
			maxF = math.Max(maxF, freq[tok])
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(sentences))
	for i, toks := range tokenized {
		sum := 0.0
		for _, tok := range toks {
			if maxF > 0 {
				sum += freq[tok] / maxF
			}
		}
		if n := float64(len(toks)); n > 0 {
			sum /= math.Sqrt(n)
		}
		ranked[i] = scored{i, sum}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if maxSentences > len(ranked) {
		maxSentences = len(ranked)
	}
	picked := make([]int, maxSentences)
	for i := range picked {
		picked[i] = ranked[i].idx
	}
	sort.Ints(picked)

	parts := make([]string, 0, len(picked))
	for _, idx := range picked {
		parts = append(parts, strings.Join(strings.Fields(sentences[idx]), " "))
	}
	return s.truncate(strings.Join(parts, " "))
}

func (s *FrequencySummarizer) truncate(text string) string {
	if s.maxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= s.maxChars {
		return text
	}
	cut := string(runes[:s.maxChars])
	if i := strings.LastIndex(cut, " "); i > len(cut)/2 {
		cut = cut[:i]
	}
	return cut + "..."
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "should", "now", "we", "you", "they", "he", "she", "i", "our", "your", "their",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
