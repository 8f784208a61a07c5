package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"librag/internal/models"
)

func TestScanTOCMatchesDotLeaderLines(t *testing.T) {
	pages := []string{
		"Contents\nChapter 1 Introduction ........ 5\nChapter 2 Methods .... 12\n2.1 Setup ...... 14\nnot a toc line",
	}
	toc := ScanTOC(pages)
	require.Len(t, toc, 3)
	require.Equal(t, 5, toc[0].Page)
	require.Equal(t, 12, toc[1].Page)
	require.Equal(t, 14, toc[2].Page)
	require.Contains(t, toc[0].Title, "Chapter 1 Introduction")
}

func TestScanTOCLimitsToLeadingPages(t *testing.T) {
	pages := make([]string, 12)
	pages[11] = "Chapter 9 Late ........ 99"
	toc := ScanTOC(pages)
	require.Empty(t, toc)
}

func TestClosestTOCEntry(t *testing.T) {
	toc := []models.TOCItem{
		{Title: "Intro", Page: 1},
		{Title: "Methods", Page: 10},
	}
	require.Equal(t, "Intro", closestTOCEntry(toc, 5).Title)
	require.Equal(t, "Methods", closestTOCEntry(toc, 10).Title)
	require.Nil(t, closestTOCEntry(toc, 0))
}

func TestChunkPagesSplitsAtHeadings(t *testing.T) {
	p := NewParser(1000, 200)
	pages := []string{
		"intro text before heading\nCHAPTER ONE OVERVIEW\nbody of chapter one\nmore body",
	}
	chunks := p.ChunkPages(pages, nil)
	require.Len(t, chunks, 2)
	require.Equal(t, "intro text before heading", chunks[0].Content)
	require.Equal(t, 0, chunks[0].ChunkIndex)
	require.Nil(t, chunks[0].Metadata["heading"])
	require.Equal(t, "CHAPTER ONE OVERVIEW body of chapter one more body", chunks[1].Content)
	require.Equal(t, 1, chunks[1].ChunkIndex)
	require.Equal(t, "CHAPTER ONE OVERVIEW", chunks[1].Metadata["heading"])
}

func TestChunkPagesAttachesTOCEntry(t *testing.T) {
	p := NewParser(1000, 200)
	toc := []models.TOCItem{{Title: "Methods", Page: 2}}
	pages := []string{"page one text", "page two text"}
	chunks := p.ChunkPages(pages, toc)
	require.Len(t, chunks, 2)
	require.Nil(t, chunks[0].Metadata["toc_title"])
	require.Equal(t, "Methods", chunks[1].Metadata["toc_title"])
	require.Equal(t, 2, chunks[1].Metadata["toc_page"])
}

func TestChunkPagesSkipsEmptyPages(t *testing.T) {
	p := NewParser(1000, 200)
	chunks := p.ChunkPages([]string{"", "  \n ", "real content"}, nil)
	require.Len(t, chunks, 1)
	require.Equal(t, 3, chunks[0].PageNumber)
}

func TestChunkPagesEmitsTableChunks(t *testing.T) {
	p := NewParser(1000, 200)
	pages := []string{
		"prose before the table\nName | Score\nalpha | 10\nbeta | 20\nprose after",
	}
	chunks := p.ChunkPages(pages, nil)
	var table *PageChunk
	for i := range chunks {
		if chunks[i].Metadata.IsTable() {
			table = &chunks[i]
		}
	}
	require.NotNil(t, table)
	require.Contains(t, table.Content, "Table 1:")
	require.Contains(t, table.Content, "Headers: Name | Score")
	require.Equal(t, 2, table.Metadata["table_rows"])
	require.Equal(t, 2, table.Metadata["table_columns"])
	// prose chunks on the same page carry the table presence flags
	require.Equal(t, true, chunks[0].Metadata["has_tables"])
	require.Equal(t, 1, chunks[0].Metadata["table_count"])
}

func TestChunkPagesIndexesRestartPerPage(t *testing.T) {
	p := NewParser(1000, 200)
	pages := []string{"first page", "second page"}
	chunks := p.ChunkPages(pages, nil)
	require.Len(t, chunks, 2)
	require.Equal(t, 0, chunks[0].ChunkIndex)
	require.Equal(t, 0, chunks[1].ChunkIndex)
}

func TestLineTableDetectorIgnoresProse(t *testing.T) {
	var d LineTableDetector
	tables := d.DetectTables("just a paragraph of text\nwith two lines and no columns")
	require.Empty(t, tables)
}

func TestLineTableDetectorRequiresTwoRows(t *testing.T) {
	var d LineTableDetector
	tables := d.DetectTables("lonely | header | row")
	require.Empty(t, tables)
}

func TestRenderTableTruncatesRows(t *testing.T) {
	tab := Table{
		Headers: []string{"a", "b"},
		Rows: [][]string{
			{"1", "2"}, {"3", "4"}, {"5", "6"}, {"7", "8"}, {"9", "10"}, {"11", "12"}, {"13", "14"},
		},
	}
	body := renderTable(0, tab)
	require.Contains(t, body, "... and 2 more rows")
}
