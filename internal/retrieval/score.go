package retrieval

import (
	"strings"
	"unicode/utf8"
)

// Score rates how relevant a chunk is to a question on lexical evidence:
// the fraction of distinct question words present in the chunk, plus a small
// bonus per question word (longer than 3 runes) appearing anywhere in the
// chunk as a substring, minus a penalty for chunks under 50 runes. Never
// negative.
func Score(chunkContent, question string) float64 {
	questionWords := wordSet(question)
	if len(questionWords) == 0 {
		return 0.0
	}
	chunkLower := strings.ToLower(chunkContent)
	chunkWords := wordSet(chunkContent)

	overlap := 0
	for w := range questionWords {
		if chunkWords[w] {
			overlap++
		}
	}
	score := float64(overlap) / float64(len(questionWords))

	for w := range questionWords {
		if utf8.RuneCountInString(w) > 3 && strings.Contains(chunkLower, w) {
			score += 0.1
		}
	}

	if utf8.RuneCountInString(chunkContent) < 50 {
		score -= 0.2
	}

	if score < 0 {
		return 0.0
	}
	return score
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}
