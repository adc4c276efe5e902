// Package summarizer produces the short extractive summary shown after a
// document is uploaded.
package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// DefaultSentences is used when Summarize is asked for zero sentences.
const DefaultSentences = 3

var (
	tokenRe    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe = regexp.MustCompile(`(?s)[^.!?]+[.!?]+`)
)

// Frequency ranks sentences by the normalized frequency of their non-stopword
// tokens and keeps the best ones in document order.
type Frequency struct {
	stopwords map[string]struct{}
}

// NewFrequency creates a frequency-based summarizer.
func NewFrequency() *Frequency {
	return &Frequency{stopwords: defaultStopwords()}
}

// Summarize returns up to maxSentences sentences of text. Text without sentence
// punctuation is returned trimmed and whitespace-collapsed. Equal scores keep
// document order, so the result is deterministic.
func (s *Frequency) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = DefaultSentences
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		return collapse(text), nil
	}

	freq := map[string]float64{}
	tokens := make([][]string, len(sentences))
	for i, sent := range sentences {
		tokens[i] = s.tokens(sent)
		for _, tok := range tokens[i] {
			if _, stop := s.stopwords[tok]; stop {
				continue
			}
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i := range sentences {
		score := 0.0
		for _, tok := range tokens[i] {
			score += freq[tok]
		}
		// length normalization keeps long sentences from dominating
		if l := float64(len(tokens[i])); l > 0 {
			score /= math.Sqrt(l)
		}
		scores[i] = pair{i, score}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	n := min(maxSentences, len(scores))
	selected := make([]int, n)
	for i := range n {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)

	out := make([]string, 0, n)
	for _, idx := range selected {
		out = append(out, collapse(sentences[idx]))
	}
	return strings.Join(out, " "), nil
}

func (s *Frequency) tokens(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now", "we", "you", "our", "your",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
