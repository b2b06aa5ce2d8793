package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/yantzn/deep-book-ocr/internal/models"
	"github.com/yantzn/deep-book-ocr/internal/services"
)

var (
	generatorInstance *services.MarkdownGeneratorFunction
	once              sync.Once
	initErr           error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("GenerateMarkdown", generateMarkdown)
}

// main is required by the Go Functions Framework.
func main() {}

// generateMarkdown is the Cloud Function entry point for finalize events on
// the intermediate bucket.
func generateMarkdown(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		generatorInstance, initErr = services.NewMarkdownGenerator(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent models.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		// A payload this malformed will never parse on redelivery either.
		slog.Error("Dropping undecodable event data", "error", err, "data", string(e.Data()))
		return nil
	}

	return generatorInstance.Process(ctx, gcsEvent)
}
