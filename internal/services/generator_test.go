package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yantzn/deep-book-ocr/internal/config"
	"github.com/yantzn/deep-book-ocr/internal/models"
)

func generatorForTest(store *fakeStore, gen *fakeGenerator, statuses *fakeStatuses, maxPages int) *MarkdownGeneratorFunction {
	cfg := config.Generator{
		ProjectID:           "test-project",
		OutputBucket:        "output",
		MaxPagesPerChunk:    maxPages,
		MaxConcurrentChunks: 2,
		GenerationTimeout:   time.Minute,
	}
	return newMarkdownGenerator(cfg, store, gen, statuses)
}

// seedOcrResult writes an OcrResult with pageCount pages ("p<i> ...") at the
// deterministic intermediate key and returns the triggering event.
func seedOcrResult(t *testing.T, store *fakeStore, pageCount int) models.GCSEvent {
	t.Helper()
	result := models.OcrResult{
		SourceBucket: "uploads",
		SourceObject: "uploads/book.pdf",
		Generation:   "42",
	}
	for i := 0; i < pageCount; i++ {
		result.Pages = append(result.Pages, models.Page{
			Index: i,
			Text:  fmt.Sprintf("p%d text of page %d", i, i),
		})
	}
	raw, err := json.Marshal(result)
	require.NoError(t, err)

	name := IntermediateObject("uploads/book.pdf", "42")
	store.put("intermediate", name, raw)
	return models.GCSEvent{Bucket: "intermediate", Name: name}
}

const testDocID = "uploads__book-42"
const testOutputKey = "uploads/book/42.md"

func TestGeneratorIgnoresUnrelatedObjects(t *testing.T) {
	gen := &fakeGenerator{}
	fn := generatorForTest(newFakeStore(), gen, newFakeStatuses(), 5)

	for _, name := range []string{
		"staging/uploads/book/42/book-output-0.json", // Document AI shard
		"uploads/book/42.md",                         // its own output convention
		"random.txt",
	} {
		err := fn.Process(context.Background(), models.GCSEvent{Bucket: "intermediate", Name: name})
		require.NoError(t, err, name)
	}
	assert.Zero(t, gen.calls)
}

func TestGeneratorEndToEnd(t *testing.T) {
	store := newFakeStore()
	event := seedOcrResult(t, store, 12)
	gen := &fakeGenerator{replies: map[string]string{"p0": "T0", "p5": "T1", "p10": "T2"}}
	statuses := newFakeStatuses()
	fn := generatorForTest(store, gen, statuses, 5)

	err := fn.Process(context.Background(), event)
	require.NoError(t, err)

	// 12 pages at 5 per chunk: chunks [5,5,2], assembled in index order.
	assert.Equal(t, 3, gen.calls)
	raw, ok := store.get("output", testOutputKey)
	require.True(t, ok, "artifact must land at the deterministic output key")
	assert.Equal(t, "T0\n\nT1\n\nT2", string(raw))

	assert.Equal(t, models.StatusCompleted, statuses.status(testDocID))
	assert.Equal(t, 3, statuses.completed[testDocID])
}

func TestGeneratorDuplicateDeliveryIsNoOp(t *testing.T) {
	store := newFakeStore()
	event := seedOcrResult(t, store, 12)
	gen := &fakeGenerator{replies: map[string]string{"p0": "T0", "p5": "T1", "p10": "T2"}}
	fn := generatorForTest(store, gen, newFakeStatuses(), 5)

	require.NoError(t, fn.Process(context.Background(), event))
	first, _ := store.get("output", testOutputKey)

	require.NoError(t, fn.Process(context.Background(), event))
	second, _ := store.get("output", testOutputKey)

	assert.Equal(t, 3, gen.calls, "second delivery must not re-run generation")
	assert.Equal(t, string(first), string(second))
}

func TestGeneratorPartialFailureWritesNothing(t *testing.T) {
	store := newFakeStore()
	event := seedOcrResult(t, store, 10)
	// 10 pages at 2 per chunk: 5 chunks; the one starting at page 4 is
	// chunk index 2.
	gen := &fakeGenerator{
		failOn:  "p4",
		failErr: models.Fatal(errors.New("content policy rejection")),
	}
	statuses := newFakeStatuses()
	fn := generatorForTest(store, gen, statuses, 2)

	err := fn.Process(context.Background(), event)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk 2")
	_, ok := store.get("output", testOutputKey)
	assert.False(t, ok, "no partial artifact may ever be written")
	assert.Equal(t, models.StatusFailed, statuses.status(testDocID))
	assert.Contains(t, statuses.failed[testDocID], "chunk 2")
}

func TestGeneratorEmptyOcrResult(t *testing.T) {
	store := newFakeStore()
	event := seedOcrResult(t, store, 0)
	gen := &fakeGenerator{}
	statuses := newFakeStatuses()
	fn := generatorForTest(store, gen, statuses, 5)

	err := fn.Process(context.Background(), event)

	require.NoError(t, err)
	assert.Zero(t, gen.calls)
	raw, ok := store.get("output", testOutputKey)
	require.True(t, ok, "an empty document still yields an artifact")
	assert.Empty(t, raw)
	assert.Equal(t, models.StatusCompleted, statuses.status(testDocID))
	chunks, recorded := statuses.completed[testDocID]
	assert.True(t, recorded, "completion must record the chunk count even when zero")
	assert.Zero(t, chunks)
}

func TestGeneratorInvalidIntermediateJSON(t *testing.T) {
	store := newFakeStore()
	name := IntermediateObject("uploads/book.pdf", "42")
	store.put("intermediate", name, []byte("not json at all"))
	statuses := newFakeStatuses()
	fn := generatorForTest(store, &fakeGenerator{}, statuses, 5)

	err := fn.Process(context.Background(), models.GCSEvent{Bucket: "intermediate", Name: name})

	require.NoError(t, err, "a corrupt intermediate is fatal, not retryable")
	assert.Equal(t, models.StatusFailed, statuses.status(testDocID))
	_, ok := store.get("output", testOutputKey)
	assert.False(t, ok)
}

func TestGeneratorSkipsBlankChunks(t *testing.T) {
	store := newFakeStore()
	result := models.OcrResult{
		SourceBucket: "uploads",
		SourceObject: "uploads/book.pdf",
		Generation:   "42",
		Pages: []models.Page{
			{Index: 0, Text: "p0 content"},
			{Index: 1, Text: "   "},
			{Index: 2, Text: "p2 content"},
		},
	}
	raw, err := json.Marshal(result)
	require.NoError(t, err)
	name := IntermediateObject("uploads/book.pdf", "42")
	store.put("intermediate", name, raw)

	gen := &fakeGenerator{}
	fn := generatorForTest(store, gen, newFakeStatuses(), 1)

	require.NoError(t, fn.Process(context.Background(), models.GCSEvent{Bucket: "intermediate", Name: name}))

	assert.Equal(t, 2, gen.calls, "blank chunk must not reach the model")
	artifact, _ := store.get("output", testOutputKey)
	assert.Equal(t, "md:p0\n\nmd:p2", string(artifact))
}
