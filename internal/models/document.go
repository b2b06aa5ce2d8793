package models

import "time"

// Pipeline statuses recorded for a document as it moves through the stages.
const (
	StatusOcrRunning  = "OCR_RUNNING"
	StatusOcrComplete = "OCR_COMPLETE"
	StatusGenerating  = "GENERATING"
	StatusCompleted   = "COMPLETED"
	StatusFailed      = "FAILED"
)

// Document is the Firestore record tracking one pipeline run. Its ID is
// derived deterministically from the source identity, so duplicate event
// deliveries update the same record instead of creating new ones.
type Document struct {
	SourceBucket string    `firestore:"sourceBucket,omitempty"`
	SourceObject string    `firestore:"sourceObject,omitempty"`
	Generation   string    `firestore:"generation,omitempty"`
	Status       string    `firestore:"status,omitempty"`
	ErrorDetails string    `firestore:"errorDetails,omitempty"`
	PageCount    int       `firestore:"pageCount,omitempty"`
	ChunkCount   int       `firestore:"chunkCount,omitempty"`
	CreatedAt    time.Time `firestore:"createdAt,omitempty"`
	UpdatedAt    time.Time `firestore:"updatedAt,omitempty"`
}
