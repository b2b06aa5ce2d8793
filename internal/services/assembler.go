package services

import (
	"sort"
	"strings"
)

// ChunkResult is the generated text for one chunk, tagged with its index so
// assembly never depends on completion order.
type ChunkResult struct {
	Index int
	Text  string
}

const chunkSeparator = "\n\n"

// Assemble concatenates chunk results in index order, separated by a single
// blank line. Empty results are skipped. When the trailing line of one chunk
// exactly equals the leading line of the next (the model repeating a heading
// at a page-range seam), the duplicate is kept only once. The match must be
// exact; anything looser risks dropping legitimately repeated content.
func Assemble(results []ChunkResult) string {
	sorted := make([]ChunkResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	var parts []string
	for _, r := range sorted {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		if len(parts) > 0 {
			if tail := lastLine(parts[len(parts)-1]); tail != "" && tail == firstLine(text) {
				text = strings.TrimSpace(strings.TrimPrefix(text, tail))
				if text == "" {
					continue
				}
			}
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, chunkSeparator)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func lastLine(s string) string {
	return s[strings.LastIndexByte(s, '\n')+1:]
}
