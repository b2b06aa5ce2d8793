package services

import (
	"strings"

	"github.com/yantzn/deep-book-ocr/internal/models"
)

// Chunk is a contiguous, ordered run of OCR pages submitted to the model as
// one unit of work.
type Chunk struct {
	Index int
	Pages []models.Page
}

// Text returns the chunk's pages joined for a single model call. Blank pages
// are dropped so a run of empty scans does not pad the prompt.
func (c Chunk) Text() string {
	var parts []string
	for _, p := range c.Pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\n\n")
}

// SplitPages partitions pages into chunks of at most maxPages, in strict
// page order. The partition is total and non-overlapping, the last chunk may
// be short, and zero pages yield no chunks. The result depends only on the
// inputs, so a retried event recomputes exactly the same chunk set.
func SplitPages(pages []models.Page, maxPages int) []Chunk {
	if maxPages <= 0 {
		maxPages = 10
	}
	var chunks []Chunk
	for start := 0; start < len(pages); start += maxPages {
		end := start + maxPages
		if end > len(pages) {
			end = len(pages)
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Pages: pages[start:end]})
	}
	return chunks
}
