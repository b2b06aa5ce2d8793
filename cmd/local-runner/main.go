// Command local-runner invokes either pipeline stage directly against real
// GCP credentials, for development without deploying the functions.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/yantzn/deep-book-ocr/internal/models"
	"github.com/yantzn/deep-book-ocr/internal/services"
)

func main() {
	stage := flag.String("stage", "ocr", "pipeline stage to run: ocr or markdown")
	bucket := flag.String("bucket", "", "bucket of the object to process")
	name := flag.String("name", "", "object name to process")
	generation := flag.String("generation", "0", "object generation token")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file loaded.", "error", err)
	}

	if *bucket == "" || *name == "" {
		fmt.Fprintln(os.Stderr, "both -bucket and -name are required")
		flag.Usage()
		os.Exit(2)
	}
	gen, err := strconv.ParseInt(*generation, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -generation %q: %v\n", *generation, err)
		os.Exit(2)
	}

	event := models.GCSEvent{
		Bucket:     *bucket,
		Name:       *name,
		Generation: models.FlexInt64(gen),
	}

	ctx := context.Background()
	switch *stage {
	case "ocr":
		fn, err := services.NewOcrTrigger(ctx)
		if err != nil {
			slog.Error("Failed to initialize OCR trigger.", "error", err)
			os.Exit(1)
		}
		err = fn.Process(ctx, event)
		exit(err)
	case "markdown":
		fn, err := services.NewMarkdownGenerator(ctx)
		if err != nil {
			slog.Error("Failed to initialize markdown generator.", "error", err)
			os.Exit(1)
		}
		err = fn.Process(ctx, event)
		exit(err)
	default:
		fmt.Fprintf(os.Stderr, "unknown stage %q (want ocr or markdown)\n", *stage)
		os.Exit(2)
	}
}

func exit(err error) {
	if err != nil {
		slog.Error("Stage failed.", "error", err)
		os.Exit(1)
	}
	slog.Info("Stage complete.")
	os.Exit(0)
}
