package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/yantzn/deep-book-ocr/internal/models"
)

// StatusStore records pipeline progress in a Firestore collection. Records
// are keyed by a deterministic document ID and written as merge-sets, so
// duplicate deliveries converge instead of forking new records.
type StatusStore struct {
	client     *firestore.Client
	collection string
}

func NewStatusStore(ctx context.Context, projectID, collection string) (*StatusStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return &StatusStore{client: client, collection: collection}, nil
}

// Upsert merges the non-zero fields of doc into the record.
func (s *StatusStore) Upsert(ctx context.Context, id string, doc *models.Document) error {
	fields := map[string]interface{}{
		"updatedAt": time.Now(),
	}
	if doc.SourceBucket != "" {
		fields["sourceBucket"] = doc.SourceBucket
	}
	if doc.SourceObject != "" {
		fields["sourceObject"] = doc.SourceObject
	}
	if doc.Generation != "" {
		fields["generation"] = doc.Generation
	}
	if doc.Status != "" {
		fields["status"] = doc.Status
	}
	if doc.PageCount > 0 {
		fields["pageCount"] = doc.PageCount
	}
	if doc.ChunkCount > 0 {
		fields["chunkCount"] = doc.ChunkCount
	}
	if !doc.CreatedAt.IsZero() {
		fields["createdAt"] = doc.CreatedAt
	}
	if _, err := s.client.Collection(s.collection).Doc(id).Set(ctx, fields, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", id, err)
	}
	return nil
}

// MarkCompleted records the terminal success. The chunk count is written
// unconditionally so a zero-page document still reads as completed with
// zero chunks.
func (s *StatusStore) MarkCompleted(ctx context.Context, id string, chunkCount int) error {
	fields := map[string]interface{}{
		"status":     models.StatusCompleted,
		"chunkCount": chunkCount,
		"updatedAt":  time.Now(),
	}
	if _, err := s.client.Collection(s.collection).Doc(id).Set(ctx, fields, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to mark document %s completed: %w", id, err)
	}
	return nil
}

// MarkFailed records a terminal failure with its details.
func (s *StatusStore) MarkFailed(ctx context.Context, id, details string) error {
	fields := map[string]interface{}{
		"status":       models.StatusFailed,
		"errorDetails": details,
		"updatedAt":    time.Now(),
	}
	if _, err := s.client.Collection(s.collection).Doc(id).Set(ctx, fields, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to mark document %s failed: %w", id, err)
	}
	return nil
}

func (s *StatusStore) Close() error {
	return s.client.Close()
}
