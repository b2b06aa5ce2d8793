package models

import (
	"fmt"
	"strconv"
	"strings"
)

// FlexInt64 decodes a JSON value that may arrive either as a number or as a
// proto-JSON string ("12345"). GCS notifications and Document AI output use
// both encodings for int64 fields.
type FlexInt64 int64

func (f *FlexInt64) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse int64 %q: %w", s, err)
	}
	*f = FlexInt64(v)
	return nil
}

func (f FlexInt64) String() string {
	return strconv.FormatInt(int64(f), 10)
}

// Page is one page of OCR output. Index is zero-based and global across the
// whole document.
type Page struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// OcrResult is the normalized intermediate document written after OCR.
// It is immutable once written; its storage key is derived from the source
// identity, so repeated deliveries for the same upload converge on one copy.
type OcrResult struct {
	SourceBucket string `json:"sourceBucket"`
	SourceObject string `json:"sourceObject"`
	Generation   string `json:"generation"`
	Pages        []Page `json:"pages"`
}

// OcrRequest identifies one source document to run through OCR and the
// staging prefix its raw shard output should land under.
type OcrRequest struct {
	SourceBucket  string
	SourceObject  string
	Generation    string
	StagingPrefix string
}

// DocAIShard mirrors the subset of a Document AI output shard needed to
// recover per-page text: the shard-wide text plus each page's text anchor
// segments into it.
type DocAIShard struct {
	Text  string      `json:"text"`
	Pages []DocAIPage `json:"pages"`
}

type DocAIPage struct {
	Layout DocAILayout `json:"layout"`
}

type DocAILayout struct {
	TextAnchor DocAITextAnchor `json:"textAnchor"`
}

type DocAITextAnchor struct {
	TextSegments []DocAITextSegment `json:"textSegments"`
}

type DocAITextSegment struct {
	StartIndex FlexInt64 `json:"startIndex"`
	EndIndex   FlexInt64 `json:"endIndex"`
}

// PageText reassembles the text of page i from the shard's text anchor
// segments. Out-of-range segment indices are clamped rather than rejected.
func (s *DocAIShard) PageText(i int) string {
	if i < 0 || i >= len(s.Pages) {
		return ""
	}
	var b strings.Builder
	for _, seg := range s.Pages[i].Layout.TextAnchor.TextSegments {
		start := int(seg.StartIndex)
		end := int(seg.EndIndex)
		if start < 0 {
			start = 0
		}
		if end > len(s.Text) {
			end = len(s.Text)
		}
		if end > start {
			b.WriteString(s.Text[start:end])
		}
	}
	return b.String()
}
