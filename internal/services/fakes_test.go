package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/yantzn/deep-book-ocr/internal/models"
)

// In-memory stand-ins for the GCP clients. The store mimics the
// precondition-write semantics of Cloud Storage: the first writer wins and a
// lost race is silently a success.

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	saves   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func objectKey(bucket, name string) string { return bucket + "/" + name }

func (s *fakeStore) put(bucket, name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectKey(bucket, name)] = data
}

func (s *fakeStore) get(bucket, name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[objectKey(bucket, name)]
	return data, ok
}

func (s *fakeStore) Exists(_ context.Context, bucket, name string) (bool, error) {
	_, ok := s.get(bucket, name)
	return ok, nil
}

func (s *fakeStore) Download(_ context.Context, bucket, name string) ([]byte, error) {
	data, ok := s.get(bucket, name)
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", bucket, name)
	}
	return data, nil
}

func (s *fakeStore) SaveAtomically(_ context.Context, bucket, name string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[objectKey(bucket, name)]; ok {
		return nil
	}
	s.objects[objectKey(bucket, name)] = data
	s.saves++
	return nil
}

type fakeOcr struct {
	calls  int
	result *models.OcrResult
	err    error
}

func (o *fakeOcr) Recognize(_ context.Context, req models.OcrRequest) (*models.OcrResult, error) {
	o.calls++
	if o.err != nil {
		return nil, o.err
	}
	res := *o.result
	res.SourceBucket = req.SourceBucket
	res.SourceObject = req.SourceObject
	res.Generation = req.Generation
	return &res, nil
}

// fakeGenerator keys its replies on the first token of the chunk text, so
// assertions stay independent of chunk completion order.
type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	replies map[string]string
	failOn  string
	failErr error
}

func (g *fakeGenerator) GenerateMarkdown(_ context.Context, text string) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	token := strings.Fields(text)[0]
	if g.failOn != "" && token == g.failOn {
		return "", g.failErr
	}
	if reply, ok := g.replies[token]; ok {
		return reply, nil
	}
	return "md:" + token, nil
}

type fakeStatuses struct {
	mu        sync.Mutex
	docs      map[string]*models.Document
	failed    map[string]string
	completed map[string]int
}

func newFakeStatuses() *fakeStatuses {
	return &fakeStatuses{
		docs:      map[string]*models.Document{},
		failed:    map[string]string{},
		completed: map[string]int{},
	}
}

func (s *fakeStatuses) Upsert(_ context.Context, id string, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.docs[id]
	if !ok {
		existing = &models.Document{}
		s.docs[id] = existing
	}
	if doc.SourceBucket != "" {
		existing.SourceBucket = doc.SourceBucket
	}
	if doc.SourceObject != "" {
		existing.SourceObject = doc.SourceObject
	}
	if doc.Generation != "" {
		existing.Generation = doc.Generation
	}
	if doc.Status != "" {
		existing.Status = doc.Status
	}
	if doc.PageCount > 0 {
		existing.PageCount = doc.PageCount
	}
	if doc.ChunkCount > 0 {
		existing.ChunkCount = doc.ChunkCount
	}
	return nil
}

func (s *fakeStatuses) MarkCompleted(_ context.Context, id string, chunkCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[id] = chunkCount
	existing, ok := s.docs[id]
	if !ok {
		existing = &models.Document{}
		s.docs[id] = existing
	}
	existing.Status = models.StatusCompleted
	existing.ChunkCount = chunkCount
	return nil
}

func (s *fakeStatuses) MarkFailed(_ context.Context, id, details string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[id] = details
	existing, ok := s.docs[id]
	if !ok {
		existing = &models.Document{}
		s.docs[id] = existing
	}
	existing.Status = models.StatusFailed
	existing.ErrorDetails = details
	return nil
}

func (s *fakeStatuses) status(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.docs[id]; ok {
		return doc.Status
	}
	return ""
}
