// Package extract turns uploaded PDFs into page-anchored text chunks with
// table-of-contents, heading, and table metadata attached.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"librag/internal/models"
	"librag/internal/util"
)

var ErrNoExtractableText = errors.New("no extractable text found in pdf")

// All-caps lines like "CHAPTER THREE" or "SYSTEM DESIGN OVERVIEW".
var headingPattern = regexp.MustCompile(`^(CHAPTER|SECTION|[A-Z][A-Z\s\d\-:]{5,})$`)

// PageChunk is one chunk of extracted text, addressed by page and position.
type PageChunk struct {
	Content    string
	PageNumber int
	ChunkIndex int
	Metadata   models.ChunkMetadata
}

// Recognizer recovers text from pages where plain extraction yields nothing,
// e.g. scanned pages run through OCR. Parse works without one; empty pages
// are simply skipped.
type Recognizer interface {
	RecognizePage(path string, pageNum int) (string, error)
}

type Parser struct {
	ChunkSize    int
	ChunkOverlap int
	Tables       TableDetector
	OCR          Recognizer
}

func NewParser(chunkSize, chunkOverlap int) *Parser {
	return &Parser{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Tables:       LineTableDetector{},
	}
}

// Result is everything Parse pulls out of one document.
type Result struct {
	TOC    []models.TOCItem
	Chunks []PageChunk
	Pages  int
}

// Parse extracts page texts, scans the leading pages for a table of contents,
// and chunks every page. Returns ErrNoExtractableText when no page produced
// any text.
func (p *Parser) Parse(path string) (Result, error) {
	pages, err := p.ExtractPages(path)
	if err != nil {
		return Result{}, err
	}
	empty := true
	for _, pg := range pages {
		if strings.TrimSpace(pg) != "" {
			empty = false
			break
		}
	}
	if empty {
		return Result{}, ErrNoExtractableText
	}
	toc := ScanTOC(pages)
	return Result{
		TOC:    toc,
		Chunks: p.ChunkPages(pages, toc),
		Pages:  len(pages),
	}, nil
}

// ExtractPages returns the sanitized plain text of every page, 0-indexed.
// Pages that yield nothing are retried through the OCR hook when one is set.
func (p *Parser) ExtractPages(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	pages := make([]string, 0, total)
	for num := 1; num <= total; num++ {
		pages = append(pages, p.pageText(r, path, num))
	}
	return pages, nil
}

func (p *Parser) pageText(r *pdf.Reader, path string, num int) string {
	page := r.Page(num)
	if page.V.IsNull() {
		return ""
	}
	text := pageRows(page)
	if strings.TrimSpace(text) == "" && p.OCR != nil {
		ocrText, err := p.OCR.RecognizePage(path, num)
		if err != nil {
			log.Warn().Int("page", num).Err(err).Msg("ocr fallback failed")
		} else {
			text = ocrText
		}
	}
	return util.SanitizeText(text)
}

// pageRows reconstructs line structure from positioned text rows so heading
// and table detection can work on lines instead of one flat string.
func pageRows(page pdf.Page) string {
	rows, err := page.GetTextByRow()
	if err != nil {
		// fall back to the flat reader
		flat, err := page.GetPlainText(nil)
		if err != nil {
			return ""
		}
		return flat
	}
	var b strings.Builder
	for _, row := range rows {
		var line strings.Builder
		for _, word := range row.Content {
			if line.Len() > 0 {
				line.WriteByte(' ')
			}
			line.WriteString(word.S)
		}
		if s := strings.TrimSpace(line.String()); s != "" {
			b.WriteString(s)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// ChunkPages splits each page at detected headings, sizes the segments, and
// appends any detected tables as their own chunks. Chunk indexes restart per
// page.
func (p *Parser) ChunkPages(pages []string, toc []models.TOCItem) []PageChunk {
	tocSorted := make([]models.TOCItem, len(toc))
	copy(tocSorted, toc)
	sort.SliceStable(tocSorted, func(i, j int) bool { return tocSorted[i].Page < tocSorted[j].Page })

	detector := p.Tables
	if detector == nil {
		detector = LineTableDetector{}
	}

	var out []PageChunk
	for i, text := range pages {
		pageNum := i + 1
		if strings.TrimSpace(text) == "" {
			continue
		}
		tocEntry := closestTOCEntry(tocSorted, pageNum)
		tables := detector.DetectTables(text)

		chunkIndex := 0
		var lastHeading string
		var segment []string
		flush := func() {
			body := strings.TrimSpace(strings.Join(segment, " "))
			segment = nil
			if body == "" {
				return
			}
			for _, part := range ChunkText(body, p.ChunkSize, p.ChunkOverlap) {
				out = append(out, PageChunk{
					Content:    part,
					PageNumber: pageNum,
					ChunkIndex: chunkIndex,
					Metadata:   textMetadata(tocEntry, lastHeading, len(tables)),
				})
				chunkIndex++
			}
		}
		for _, line := range strings.Split(text, "\n") {
			trimmed := strings.TrimSpace(line)
			if headingPattern.MatchString(trimmed) {
				flush()
				lastHeading = trimmed
			}
			segment = append(segment, line)
		}
		flush()

		for tableIdx, table := range tables {
			meta := models.ChunkMetadata{
				"is_table":      true,
				"table_index":   tableIdx,
				"table_rows":    len(table.Rows),
				"table_columns": len(table.Headers),
			}
			addTOCAndHeading(meta, tocEntry, lastHeading)
			out = append(out, PageChunk{
				Content:    renderTable(tableIdx, table),
				PageNumber: pageNum,
				ChunkIndex: chunkIndex,
				Metadata:   meta,
			})
			chunkIndex++
		}
	}
	return out
}

func textMetadata(tocEntry *models.TOCItem, heading string, tableCount int) models.ChunkMetadata {
	meta := models.ChunkMetadata{
		"has_tables":  tableCount > 0,
		"table_count": tableCount,
	}
	addTOCAndHeading(meta, tocEntry, heading)
	return meta
}

func addTOCAndHeading(meta models.ChunkMetadata, tocEntry *models.TOCItem, heading string) {
	if tocEntry != nil {
		meta["toc_title"] = tocEntry.Title
		meta["toc_page"] = tocEntry.Page
	}
	if heading != "" {
		meta["heading"] = heading
	}
}
