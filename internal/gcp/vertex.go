package gcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yantzn/deep-book-ocr/internal/models"
)

// MarkdownSystemPrompt fixes the conversion policy for every chunk. It is a
// compile-time constant so reruns of the same document produce comparable
// output.
const MarkdownSystemPrompt = `You are an expert editor converting OCR text from scanned books into clean, faithful Markdown.

Follow these rules:
- Reconstruct the original content as accurately as possible. Do NOT summarize and do NOT invent missing content.
- Preserve the original language of the source text.
- Fix OCR errors only when the correction is obvious and certain; when uncertain, keep the original text as-is.
- Remove repeated noise such as page numbers, running headers, footers, and watermarks. If the same line repeats across pages, keep it only once.
- Use headings (#, ##, ###) only when the section structure is clear from the text. Preserve paragraph breaks, lists, and indentation.
- Detect code, CLI commands, config files, and logs; wrap them in fenced code blocks with the most likely language.
- Use Markdown tables for clearly tabular content; otherwise keep it as preformatted text.

Return ONLY the final Markdown content. Do not include any preamble like "Here is the markdown" and do not surround the output with backtick fences unless the content itself is a code block.`

const (
	maxGenerateAttempts = 3
	initialBackoff      = 2 * time.Second
)

// VertexConfig identifies the generative model to drive.
type VertexConfig struct {
	ProjectID string
	Location  string
	ModelName string
}

// VertexClient holds the pre-configured markdown conversion model.
type VertexClient struct {
	model      *genai.GenerativeModel
	baseClient *genai.Client
}

func NewVertexClient(ctx context.Context, cfg VertexConfig) (*VertexClient, error) {
	if cfg.ProjectID == "" || cfg.Location == "" {
		return nil, fmt.Errorf("NewVertexClient: ProjectID and Location cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := baseClient.GenerativeModel(cfg.ModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(MarkdownSystemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.2),
	}
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	return &VertexClient{model: model, baseClient: baseClient}, nil
}

// GenerateMarkdown converts one chunk of OCR text. Transient service errors
// are retried with backoff inside the configured deadline; a safety block or
// refusal is fatal; an empty or unusable response is retried once and then
// fatal.
func (c *VertexClient) GenerateMarkdown(ctx context.Context, text string) (string, error) {
	var lastErr error
	backoff := initialBackoff
	malformedRetried := false

	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		resp, err := c.model.GenerateContent(ctx, genai.Text(text))
		switch {
		case err != nil && !isTransient(err):
			return "", models.Fatal(fmt.Errorf("generate content: %w", err))
		case err != nil:
			lastErr = err
		default:
			md, extractErr := extractMarkdown(resp)
			if extractErr == nil {
				if isRefusal(md) {
					return "", models.Fatal(fmt.Errorf("model refused the conversion"))
				}
				return md, nil
			}
			if models.IsFatal(extractErr) {
				return "", extractErr
			}
			if malformedRetried {
				return "", models.Fatal(extractErr)
			}
			malformedRetried = true
			lastErr = extractErr
		}

		if attempt == maxGenerateAttempts {
			break
		}
		slog.Warn("Generation attempt failed. Will retry.",
			"attempt", attempt,
			"maxAttempts", maxGenerateAttempts,
			"backoff", backoff.String(),
			"error", lastErr,
		)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("generation failed after %d attempts: %w", maxGenerateAttempts, lastErr)
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

// extractMarkdown pulls the text content out of the model response,
// stripping a surrounding code fence if the model added one. Safety blocks
// come back as fatal errors, missing content as plain errors.
func extractMarkdown(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
			return "", models.Fatal(fmt.Errorf("prompt blocked: reason %v", resp.PromptFeedback.BlockReason))
		}
		return "", fmt.Errorf("empty response from model")
	}

	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety || cand.FinishReason == genai.FinishReasonProhibitedContent {
		return "", models.Fatal(fmt.Errorf("candidate blocked: reason %v", cand.FinishReason))
	}
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", fmt.Errorf("response has no content parts")
	}

	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}

	content := strings.TrimSpace(b.String())
	content = strings.TrimPrefix(content, "```markdown")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("model returned no text content")
	}
	return content, nil
}

// isRefusal probes for the model answering about itself instead of
// converting. Such output must never land in the artifact.
func isRefusal(content string) bool {
	refusalPhrases := []string{
		"i am unable to",
		"i cannot fulfill",
		"i cannot answer",
		"i cannot provide",
		"as a large language model",
	}
	lower := strings.ToLower(content)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Internal, codes.Aborted:
		return true
	}
	return false
}
