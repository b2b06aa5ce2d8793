// Package config loads and validates the environment-driven settings for
// both pipeline functions.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// OcrTrigger configures the ingestion function.
type OcrTrigger struct {
	ProjectID           string        `env:"PROJECT_ID"`
	IntermediateBucket  string        `env:"INTERMEDIATE_BUCKET"`
	ProcessorID         string        `env:"DOCAI_PROCESSOR_ID"`
	ProcessorLocation   string        `env:"DOCAI_LOCATION" envDefault:"us"`
	OcrTimeout          time.Duration `env:"OCR_TIMEOUT" envDefault:"10m"`
	FirestoreCollection string        `env:"FIRESTORE_COLLECTION" envDefault:"documents"`
}

// LoadOcrTrigger reads the ingestion settings from the environment.
func LoadOcrTrigger() (*OcrTrigger, error) {
	cfg := &OcrTrigger{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	if cfg.IntermediateBucket == "" {
		return nil, fmt.Errorf("INTERMEDIATE_BUCKET environment variable must be set")
	}
	if cfg.ProcessorID == "" {
		return nil, fmt.Errorf("DOCAI_PROCESSOR_ID environment variable must be set")
	}
	return cfg, nil
}

// Generator configures the markdown generation function.
type Generator struct {
	ProjectID           string        `env:"PROJECT_ID"`
	OutputBucket        string        `env:"OUTPUT_BUCKET"`
	VertexLocation      string        `env:"VERTEX_LOCATION" envDefault:"us-central1"`
	ModelName           string        `env:"MODEL_NAME" envDefault:"gemini-1.5-pro"`
	MaxPagesPerChunk    int           `env:"MAX_PAGES_PER_CHUNK" envDefault:"10"`
	MaxConcurrentChunks int           `env:"MAX_CONCURRENT_CHUNKS" envDefault:"4"`
	GenerationTimeout   time.Duration `env:"GENERATION_TIMEOUT" envDefault:"2m"`
	FirestoreCollection string        `env:"FIRESTORE_COLLECTION" envDefault:"documents"`
}

// LoadGenerator reads the generation settings from the environment.
// Non-positive tuning values fall back to their defaults rather than
// failing startup.
func LoadGenerator() (*Generator, error) {
	cfg := &Generator{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	if cfg.OutputBucket == "" {
		return nil, fmt.Errorf("OUTPUT_BUCKET environment variable must be set")
	}
	if cfg.MaxPagesPerChunk <= 0 {
		cfg.MaxPagesPerChunk = 10
	}
	if cfg.MaxConcurrentChunks <= 0 {
		cfg.MaxConcurrentChunks = 4
	}
	return cfg, nil
}
