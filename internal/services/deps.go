package services

import (
	"context"

	"github.com/yantzn/deep-book-ocr/internal/models"
)

// ObjectStore is the slice of Cloud Storage behavior the handlers need.
// SaveAtomically must be overwrite-safe under duplicate deliveries: losing a
// create race to a writer with identical derived content is a success.
type ObjectStore interface {
	Exists(ctx context.Context, bucket, name string) (bool, error)
	Download(ctx context.Context, bucket, name string) ([]byte, error)
	SaveAtomically(ctx context.Context, bucket, name string, data []byte, contentType string) error
}

// OcrEngine submits one source document for OCR and returns the merged,
// normalized result.
type OcrEngine interface {
	Recognize(ctx context.Context, req models.OcrRequest) (*models.OcrResult, error)
}

// TextGenerator converts one chunk of OCR text into markdown.
type TextGenerator interface {
	GenerateMarkdown(ctx context.Context, text string) (string, error)
}

// StatusStore records pipeline progress for a document.
type StatusStore interface {
	Upsert(ctx context.Context, id string, doc *models.Document) error
	MarkCompleted(ctx context.Context, id string, chunkCount int) error
	MarkFailed(ctx context.Context, id, details string) error
}
