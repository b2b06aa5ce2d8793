package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setOcrTriggerEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PROJECT_ID", "test-project")
	t.Setenv("INTERMEDIATE_BUCKET", "intermediate")
	t.Setenv("DOCAI_PROCESSOR_ID", "proc-1")
}

func TestLoadOcrTriggerDefaults(t *testing.T) {
	setOcrTriggerEnv(t)

	cfg, err := LoadOcrTrigger()
	require.NoError(t, err)
	assert.Equal(t, "us", cfg.ProcessorLocation)
	assert.Equal(t, 10*time.Minute, cfg.OcrTimeout)
	assert.Equal(t, "documents", cfg.FirestoreCollection)
}

func TestLoadOcrTriggerMissingRequired(t *testing.T) {
	tests := []string{"PROJECT_ID", "INTERMEDIATE_BUCKET", "DOCAI_PROCESSOR_ID"}
	for _, missing := range tests {
		t.Run(missing, func(t *testing.T) {
			setOcrTriggerEnv(t)
			t.Setenv(missing, "")

			_, err := LoadOcrTrigger()
			require.Error(t, err)
			assert.Contains(t, err.Error(), missing)
		})
	}
}

func TestLoadOcrTriggerOverrides(t *testing.T) {
	setOcrTriggerEnv(t)
	t.Setenv("OCR_TIMEOUT", "90s")
	t.Setenv("DOCAI_LOCATION", "eu")

	cfg, err := LoadOcrTrigger()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.OcrTimeout)
	assert.Equal(t, "eu", cfg.ProcessorLocation)
}

func setGeneratorEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PROJECT_ID", "test-project")
	t.Setenv("OUTPUT_BUCKET", "output")
}

func TestLoadGeneratorDefaults(t *testing.T) {
	setGeneratorEnv(t)

	cfg, err := LoadGenerator()
	require.NoError(t, err)
	assert.Equal(t, "us-central1", cfg.VertexLocation)
	assert.Equal(t, "gemini-1.5-pro", cfg.ModelName)
	assert.Equal(t, 10, cfg.MaxPagesPerChunk)
	assert.Equal(t, 4, cfg.MaxConcurrentChunks)
	assert.Equal(t, 2*time.Minute, cfg.GenerationTimeout)
}

func TestLoadGeneratorMissingRequired(t *testing.T) {
	t.Setenv("PROJECT_ID", "")
	t.Setenv("OUTPUT_BUCKET", "output")
	_, err := LoadGenerator()
	require.Error(t, err)

	t.Setenv("PROJECT_ID", "test-project")
	t.Setenv("OUTPUT_BUCKET", "")
	_, err = LoadGenerator()
	require.Error(t, err)
}

func TestLoadGeneratorClampsNonPositiveTuning(t *testing.T) {
	setGeneratorEnv(t)
	t.Setenv("MAX_PAGES_PER_CHUNK", "-3")
	t.Setenv("MAX_CONCURRENT_CHUNKS", "0")

	cfg, err := LoadGenerator()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxPagesPerChunk)
	assert.Equal(t, 4, cfg.MaxConcurrentChunks)
}
