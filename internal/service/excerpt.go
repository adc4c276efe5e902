package service

import (
	"math"
	"regexp"
	"strings"
)

// MaxExcerptRunes bounds the excerpt attached to each source.
const MaxExcerptRunes = 200

var (
	unicodeWordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)
	sentenceRe    = regexp.MustCompile(`(?s)[^.!?]+[.!?]*`)
)

// Excerpt picks the sentence of text that overlaps query the most, falling
// back to the start of text, and trims it to maxRunes.
func Excerpt(text, query string, maxRunes int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	best := text
	if q := toTokenSet(query); len(q) > 0 {
		bestScore := 0.0
		for _, s := range sentenceRe.FindAllString(text, -1) {
			if score := overlapOchiai(q, s); score > bestScore {
				bestScore = score
				best = strings.TrimSpace(s)
			}
		}
	}
	return truncate(strings.Join(strings.Fields(best), " "), maxRunes)
}

func truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return strings.TrimSpace(string(r[:maxRunes-1])) + "…"
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// overlapOchiai is |A∩B| / sqrt(|A||B|) over distinct tokens.
func overlapOchiai(qset map[string]struct{}, text string) float64 {
	seen := toTokenSet(text)
	if len(qset) == 0 || len(seen) == 0 {
		return 0
	}
	inter := 0
	for t := range seen {
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(qset))*float64(len(seen)))
}
