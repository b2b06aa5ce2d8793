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
	ocrTriggerInstance *services.OcrTriggerFunction
	once               sync.Once
	initErr            error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("StartOCR", startOCR)
}

// main is required by the Go Functions Framework.
func main() {}

// startOCR is the Cloud Function entry point for finalize events on the
// source bucket.
func startOCR(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		ocrTriggerInstance, initErr = services.NewOcrTrigger(context.Background())
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

	return ocrTriggerInstance.Process(ctx, gcsEvent)
}
