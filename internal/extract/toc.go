package extract

import (
	"regexp"
	"strconv"
	"strings"

	"librag/internal/models"
)

const tocScanPages = 10

// Lines like "Chapter 3: Memory ......... 41" or "2.1 Setup .... 9".
var tocPattern = regexp.MustCompile(`(?i)^(Chapter|Section|[0-9]+(\.[0-9]+)*)[\s\w\-:,.]*\.{2,}\s*(\d+)$`)

// ScanTOC looks for table-of-contents lines in the given page texts,
// typically the first few pages of a document.
func ScanTOC(pages []string) []models.TOCItem {
	limit := len(pages)
	if limit > tocScanPages {
		limit = tocScanPages
	}
	var toc []models.TOCItem
	for i := 0; i < limit; i++ {
		for _, line := range strings.Split(pages[i], "\n") {
			line = strings.TrimSpace(line)
			m := tocPattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			page, err := strconv.Atoi(m[3])
			if err != nil {
				continue
			}
			title := line
			if idx := strings.LastIndex(title, "."); idx >= 0 {
				title = strings.TrimSpace(title[:idx])
			}
			title = strings.TrimRight(title, ". ")
			toc = append(toc, models.TOCItem{Title: title, Page: page})
		}
	}
	return toc
}

// closestTOCEntry returns the last ToC entry whose page is at or before
// pageNum, or nil when the page precedes every entry.
func closestTOCEntry(sorted []models.TOCItem, pageNum int) *models.TOCItem {
	for i := len(sorted) - 1; i >= 0; i-- {
		if pageNum >= sorted[i].Page {
			return &sorted[i]
		}
	}
	return nil
}
