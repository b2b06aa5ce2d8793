package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/yantzn/deep-book-ocr/internal/config"
	"github.com/yantzn/deep-book-ocr/internal/gcp"
	"github.com/yantzn/deep-book-ocr/internal/models"
)

// OcrTriggerFunction handles finalize events on the source bucket: it
// validates the uploaded PDF, runs it through OCR and writes the normalized
// result to the intermediate bucket.
type OcrTriggerFunction struct {
	store    ObjectStore
	ocr      OcrEngine
	statuses StatusStore
	config   config.OcrTrigger

	pageCount func(data []byte) (int, error)
}

// NewOcrTrigger creates the function with real GCP clients.
func NewOcrTrigger(ctx context.Context) (*OcrTriggerFunction, error) {
	cfg, err := config.LoadOcrTrigger()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := gcp.NewStorageClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	ocr, err := gcp.NewDocumentAIClient(ctx, store, gcp.DocumentAIConfig{
		ProjectID:         cfg.ProjectID,
		ProcessorID:       cfg.ProcessorID,
		ProcessorLocation: cfg.ProcessorLocation,
		StagingBucket:     cfg.IntermediateBucket,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Document AI client: %w", err)
	}
	statuses, err := gcp.NewStatusStore(ctx, cfg.ProjectID, cfg.FirestoreCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	slog.Info("OCR trigger logic initialized.", "processorId", cfg.ProcessorID)
	return newOcrTrigger(*cfg, store, ocr, statuses), nil
}

func newOcrTrigger(cfg config.OcrTrigger, store ObjectStore, ocr OcrEngine, statuses StatusStore) *OcrTriggerFunction {
	return &OcrTriggerFunction{
		store:     store,
		ocr:       ocr,
		statuses:  statuses,
		config:    cfg,
		pageCount: pdfPageCount,
	}
}

// Process handles one finalize event for the source bucket.
func (f *OcrTriggerFunction) Process(ctx context.Context, e models.GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)

	if e.Bucket == "" || e.Name == "" {
		logCtx.Warn("Ignoring event with missing bucket or object name.")
		return nil
	}
	if !IsPDFObject(e.Name, e.ContentType) {
		logCtx.Info("Ignoring non-PDF object.", "contentType", e.ContentType)
		return nil
	}

	gen := e.Generation.String()
	intermediate := IntermediateObject(e.Name, gen)
	exists, err := f.store.Exists(ctx, f.config.IntermediateBucket, intermediate)
	if err != nil {
		return fmt.Errorf("check existing OCR result: %w", err)
	}
	if exists {
		logCtx.Info("OCR result already present. Skipping duplicate delivery.", "object", intermediate)
		return nil
	}

	docID := DocumentID(e.Name, gen)
	logCtx = logCtx.With("documentId", docID)

	data, err := f.store.Download(ctx, e.Bucket, e.Name)
	if err != nil {
		return fmt.Errorf("download source document: %w", err)
	}
	pages, err := f.pageCount(data)
	if err != nil {
		return f.fail(ctx, logCtx, docID, "source document is not a readable PDF", models.Fatal(err))
	}
	logCtx.Info("Source PDF validated.", "pageCount", pages)

	if err := f.statuses.Upsert(ctx, docID, &models.Document{
		SourceBucket: e.Bucket,
		SourceObject: e.Name,
		Generation:   gen,
		Status:       models.StatusOcrRunning,
		PageCount:    pages,
		CreatedAt:    time.Now(),
	}); err != nil {
		return fmt.Errorf("record job start: %w", err)
	}

	ocrCtx, cancel := context.WithTimeout(ctx, f.config.OcrTimeout)
	defer cancel()
	result, err := f.ocr.Recognize(ocrCtx, models.OcrRequest{
		SourceBucket:  e.Bucket,
		SourceObject:  e.Name,
		Generation:    gen,
		StagingPrefix: StagingPrefix(e.Name, gen),
	})
	if err != nil {
		return f.fail(ctx, logCtx, docID, "OCR failed", err)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return f.fail(ctx, logCtx, docID, "failed to encode OCR result", models.Fatal(err))
	}
	if err := f.store.SaveAtomically(ctx, f.config.IntermediateBucket, intermediate, payload, "application/json"); err != nil {
		return f.fail(ctx, logCtx, docID, "failed to write OCR result", err)
	}

	if err := f.statuses.Upsert(ctx, docID, &models.Document{
		Status:    models.StatusOcrComplete,
		PageCount: len(result.Pages),
	}); err != nil {
		logCtx.Warn("Failed to record OCR completion; result is already durable.", "error", err)
	}

	logCtx.Info("OCR complete.", "object", intermediate, "pageCount", len(result.Pages))
	return nil
}

// fail records the failure on the document record. Fatal errors are
// acknowledged since redelivery cannot fix the input; everything else fails
// the event so the delivery retry policy re-attempts it.
func (f *OcrTriggerFunction) fail(ctx context.Context, logCtx *slog.Logger, docID, message string, err error) error {
	full := fmt.Sprintf("%s: %v", message, err)
	logCtx.Error(message, "error", err)
	if mErr := f.statuses.MarkFailed(ctx, docID, full); mErr != nil {
		logCtx.Error("CRITICAL: Failed to record FAILED status after a processing error.", "error", mErr)
	}
	if models.IsFatal(err) {
		return nil
	}
	return fmt.Errorf("%s", full)
}

func pdfPageCount(data []byte) (int, error) {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(data), cfg)
}
