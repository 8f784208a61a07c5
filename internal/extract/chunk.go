package extract

import "strings"

// ChunkText splits text into overlapping chunks of at most chunkSize runes.
// When a chunk would cut a word, the split moves back to the last space as
// long as that keeps at least 70% of the chunk.
func ChunkText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	runes := []rune(text)
	out := make([]string, 0)
	start := 0
	for start < len(runes) {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := runes[start:end]
		if end < len(runes) {
			lastSpace := -1
			for i := len(chunk) - 1; i >= 0; i-- {
				if chunk[i] == ' ' {
					lastSpace = i
					break
				}
			}
			if lastSpace > (chunkSize*7)/10 {
				chunk = chunk[:lastSpace]
			}
		}
		part := strings.TrimSpace(string(chunk))
		if part != "" {
			out = append(out, part)
		}
		if end >= len(runes) {
			break
		}
		start = end - overlap
	}
	return out
}
