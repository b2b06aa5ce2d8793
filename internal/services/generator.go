package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/yantzn/deep-book-ocr/internal/config"
	"github.com/yantzn/deep-book-ocr/internal/gcp"
	"github.com/yantzn/deep-book-ocr/internal/models"
)

const markdownContentType = "text/markdown; charset=utf-8"

// MarkdownGeneratorFunction handles finalize events on the intermediate
// bucket: it chunks the OCR result, drives the generative model over each
// chunk and writes the assembled markdown to the output bucket.
type MarkdownGeneratorFunction struct {
	store    ObjectStore
	gen      TextGenerator
	statuses StatusStore
	config   config.Generator
}

// NewMarkdownGenerator creates the function with real GCP clients.
func NewMarkdownGenerator(ctx context.Context) (*MarkdownGeneratorFunction, error) {
	cfg, err := config.LoadGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := gcp.NewStorageClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	gen, err := gcp.NewVertexClient(ctx, gcp.VertexConfig{
		ProjectID: cfg.ProjectID,
		Location:  cfg.VertexLocation,
		ModelName: cfg.ModelName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}
	statuses, err := gcp.NewStatusStore(ctx, cfg.ProjectID, cfg.FirestoreCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	slog.Info("Markdown generator logic initialized.", "model", cfg.ModelName)
	return newMarkdownGenerator(*cfg, store, gen, statuses), nil
}

func newMarkdownGenerator(cfg config.Generator, store ObjectStore, gen TextGenerator, statuses StatusStore) *MarkdownGeneratorFunction {
	return &MarkdownGeneratorFunction{
		store:    store,
		gen:      gen,
		statuses: statuses,
		config:   cfg,
	}
}

// Process handles one finalize event for the intermediate bucket.
func (f *MarkdownGeneratorFunction) Process(ctx context.Context, e models.GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)

	if e.Bucket == "" || e.Name == "" {
		logCtx.Warn("Ignoring event with missing bucket or object name.")
		return nil
	}
	if !IsIntermediateObject(e.Name) {
		logCtx.Info("Ignoring object outside the OCR result naming convention.")
		return nil
	}

	output := OutputObject(e.Name)
	exists, err := f.store.Exists(ctx, f.config.OutputBucket, output)
	if err != nil {
		return fmt.Errorf("check existing artifact: %w", err)
	}
	if exists {
		logCtx.Info("Final artifact already present. Skipping duplicate delivery.", "object", output)
		return nil
	}

	docID := DocumentIDFromIntermediate(e.Name)
	logCtx = logCtx.With("documentId", docID)

	raw, err := f.store.Download(ctx, e.Bucket, e.Name)
	if err != nil {
		return fmt.Errorf("download OCR result: %w", err)
	}
	var result models.OcrResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return f.fail(ctx, logCtx, docID, "OCR result is not valid JSON", models.Fatal(err))
	}

	chunks := SplitPages(result.Pages, f.config.MaxPagesPerChunk)
	if len(chunks) == 0 {
		logCtx.Warn("OCR result has no pages. Writing empty artifact.")
		if err := f.store.SaveAtomically(ctx, f.config.OutputBucket, output, nil, markdownContentType); err != nil {
			return f.fail(ctx, logCtx, docID, "failed to write empty artifact", err)
		}
		return f.complete(ctx, logCtx, docID, output, 0)
	}

	if err := f.statuses.Upsert(ctx, docID, &models.Document{
		SourceBucket: result.SourceBucket,
		SourceObject: result.SourceObject,
		Generation:   result.Generation,
		Status:       models.StatusGenerating,
		PageCount:    len(result.Pages),
		ChunkCount:   len(chunks),
	}); err != nil {
		return fmt.Errorf("record generation start: %w", err)
	}

	results, err := f.generateAll(ctx, logCtx, chunks)
	if err != nil {
		// Never write a partial artifact: fail the whole event so redelivery
		// recomputes the identical chunk set.
		full := fmt.Sprintf("chunk generation failed: %v", err)
		logCtx.Error("Chunk generation failed.", "error", err)
		if mErr := f.statuses.MarkFailed(ctx, docID, full); mErr != nil {
			logCtx.Error("CRITICAL: Failed to record FAILED status after a generation error.", "error", mErr)
		}
		return errors.New(full)
	}

	artifact := Assemble(results)
	if err := f.store.SaveAtomically(ctx, f.config.OutputBucket, output, []byte(artifact), markdownContentType); err != nil {
		return f.fail(ctx, logCtx, docID, "failed to write final artifact", err)
	}
	return f.complete(ctx, logCtx, docID, output, len(chunks))
}

// generateAll fans the chunks out over the model with bounded parallelism.
// Results land in an index-keyed slice, so completion order is irrelevant.
func (f *MarkdownGeneratorFunction) generateAll(ctx context.Context, logCtx *slog.Logger, chunks []Chunk) ([]ChunkResult, error) {
	results := make([]ChunkResult, len(chunks))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(f.config.MaxConcurrentChunks)

	for _, chunk := range chunks {
		results[chunk.Index] = ChunkResult{Index: chunk.Index}
		text := chunk.Text()
		if strings.TrimSpace(text) == "" {
			logCtx.Info("Skipping blank chunk.", "chunk", chunk.Index)
			continue
		}
		eg.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, f.config.GenerationTimeout)
			defer cancel()

			md, err := f.gen.GenerateMarkdown(callCtx, text)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", chunk.Index, err)
			}
			logCtx.Info("Chunk generated.", "chunk", chunk.Index, "pages", len(chunk.Pages))
			results[chunk.Index].Text = md
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (f *MarkdownGeneratorFunction) complete(ctx context.Context, logCtx *slog.Logger, docID, output string, chunkCount int) error {
	if err := f.statuses.MarkCompleted(ctx, docID, chunkCount); err != nil {
		logCtx.Warn("Failed to record completion; artifact is already durable.", "error", err)
	}
	logCtx.Info("Final artifact written.", "object", output, "chunkCount", chunkCount)
	return nil
}

// fail mirrors the ingestion handler's policy: fatal errors are recorded and
// acknowledged, everything else fails the event for redelivery.
func (f *MarkdownGeneratorFunction) fail(ctx context.Context, logCtx *slog.Logger, docID, message string, err error) error {
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
