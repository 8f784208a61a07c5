package retrieval

import "sort"

// Diversify reorders scored chunks so that every represented document
// contributes its best chunk before any document contributes a second one.
// Documents are visited in order of their mean relevance score; leftovers
// fill the remaining slots purely by score. At most targetCount chunks
// come back.
func Diversify(chunks []Chunk, targetCount int) []Chunk {
	if len(chunks) == 0 || targetCount <= 0 {
		return nil
	}

	byScore := make([]Chunk, len(chunks))
	copy(byScore, chunks)
	sort.SliceStable(byScore, func(i, j int) bool {
		return byScore[i].RelevanceScore > byScore[j].RelevanceScore
	})

	// group by document, keeping first-appearance order of the sorted list
	var docOrder []string
	groups := make(map[string][]Chunk)
	for _, c := range byScore {
		if _, ok := groups[c.DocumentName]; !ok {
			docOrder = append(docOrder, c.DocumentName)
		}
		groups[c.DocumentName] = append(groups[c.DocumentName], c)
	}

	meanScore := make(map[string]float64, len(docOrder))
	for name, g := range groups {
		sum := 0.0
		for _, c := range g {
			sum += c.RelevanceScore
		}
		meanScore[name] = sum / float64(len(g))
	}
	sort.SliceStable(docOrder, func(i, j int) bool {
		return meanScore[docOrder[i]] > meanScore[docOrder[j]]
	})

	// one round: best chunk from each document
	diversified := make([]Chunk, 0, targetCount)
	for _, name := range docOrder {
		if len(diversified) >= targetCount {
			break
		}
		diversified = append(diversified, groups[name][0])
		groups[name] = groups[name][1:]
	}

	// pool the leftovers and fill remaining slots by score
	var remaining []Chunk
	for _, name := range docOrder {
		remaining = append(remaining, groups[name]...)
	}
	sort.SliceStable(remaining, func(i, j int) bool {
		return remaining[i].RelevanceScore > remaining[j].RelevanceScore
	})
	for _, c := range remaining {
		if len(diversified) >= targetCount {
			break
		}
		diversified = append(diversified, c)
	}
	return diversified
}
