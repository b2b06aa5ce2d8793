package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yantzn/deep-book-ocr/internal/models"
)

// DocumentAIConfig identifies the OCR processor and where its raw batch
// output lands.
type DocumentAIConfig struct {
	ProjectID         string
	ProcessorID       string
	ProcessorLocation string
	StagingBucket     string
}

// DocumentAIClient runs a source document through Document AI batch OCR and
// merges the sharded output into a single normalized result.
type DocumentAIClient struct {
	client  *documentai.DocumentProcessorClient
	storage *StorageClient
	config  DocumentAIConfig
}

func NewDocumentAIClient(ctx context.Context, storage *StorageClient, cfg DocumentAIConfig) (*DocumentAIClient, error) {
	if cfg.ProjectID == "" || cfg.ProcessorID == "" {
		return nil, fmt.Errorf("NewDocumentAIClient: ProjectID and ProcessorID cannot be empty")
	}
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.ProcessorLocation)
	client, err := documentai.NewDocumentProcessorClient(ctx, option.WithEndpoint(endpoint))
	if err != nil {
		return nil, fmt.Errorf("documentai.NewDocumentProcessorClient: %w", err)
	}
	return &DocumentAIClient{client: client, storage: storage, config: cfg}, nil
}

// Recognize submits the batch job, waits for it under the caller's deadline
// and collects the merged result. A deadline expiry surfaces as a retryable
// error; a processor rejection of the input is fatal.
func (c *DocumentAIClient) Recognize(ctx context.Context, req models.OcrRequest) (*models.OcrResult, error) {
	op, err := c.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	if _, err := op.Wait(ctx); err != nil {
		return nil, classify(fmt.Errorf("OCR batch operation: %w", err))
	}
	meta, err := op.Metadata()
	if err != nil {
		return nil, fmt.Errorf("OCR batch metadata: %w", err)
	}
	prefix, err := operationOutputPrefix(meta, c.config.StagingBucket)
	if err != nil {
		return nil, err
	}
	return c.collect(ctx, req, prefix)
}

func (c *DocumentAIClient) submit(ctx context.Context, req models.OcrRequest) (*documentai.BatchProcessDocumentsOperation, error) {
	processor := fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		c.config.ProjectID, c.config.ProcessorLocation, c.config.ProcessorID)

	batchReq := &documentaipb.BatchProcessRequest{
		Name: processor,
		InputDocuments: &documentaipb.BatchDocumentsInputConfig{
			Source: &documentaipb.BatchDocumentsInputConfig_GcsDocuments{
				GcsDocuments: &documentaipb.GcsDocuments{
					Documents: []*documentaipb.GcsDocument{{
						GcsUri:   fmt.Sprintf("gs://%s/%s", req.SourceBucket, req.SourceObject),
						MimeType: "application/pdf",
					}},
				},
			},
		},
		DocumentOutputConfig: &documentaipb.DocumentOutputConfig{
			Destination: &documentaipb.DocumentOutputConfig_GcsOutputConfig_{
				GcsOutputConfig: &documentaipb.DocumentOutputConfig_GcsOutputConfig{
					GcsUri: fmt.Sprintf("gs://%s/%s", c.config.StagingBucket, req.StagingPrefix),
				},
			},
		},
	}

	op, err := c.client.BatchProcessDocuments(ctx, batchReq)
	if err != nil {
		return nil, classify(fmt.Errorf("submit OCR batch: %w", err))
	}
	slog.Info("OCR batch job submitted.", "operation", op.Name(), "gcsObject", req.SourceObject)
	return op, nil
}

// operationOutputPrefix extracts the destination the completed operation
// actually wrote under. Each batch operation writes into its own
// subdirectory of the configured staging prefix, so listing the whole prefix
// after a resubmission would merge shards from an abandoned earlier
// operation as well.
func operationOutputPrefix(meta *documentaipb.BatchProcessMetadata, stagingBucket string) (string, error) {
	bucketURI := "gs://" + stagingBucket + "/"
	for _, st := range meta.GetIndividualProcessStatuses() {
		dest := st.GetOutputGcsDestination()
		if dest == "" {
			continue
		}
		if !strings.HasPrefix(dest, bucketURI) {
			return "", fmt.Errorf("OCR output destination %q is outside gs://%s", dest, stagingBucket)
		}
		prefix := strings.TrimPrefix(dest, bucketURI)
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		return prefix, nil
	}
	return "", fmt.Errorf("OCR batch metadata reports no output destination")
}

// shardIndex parses the unpadded decimal suffix Document AI appends to its
// shard names ("...-output-2.json"). Names without one sort first.
func shardIndex(name string) int {
	base := strings.TrimSuffix(name, ".json")
	i := strings.LastIndexByte(base, '-')
	if i < 0 {
		return -1
	}
	n, err := strconv.Atoi(base[i+1:])
	if err != nil {
		return -1
	}
	return n
}

// sortShards orders shard names by their numeric suffix. A lexicographic
// sort would stitch shard 10 in before shard 2 once a document produces ten
// or more shards.
func sortShards(names []string) {
	sort.SliceStable(names, func(a, b int) bool {
		ia, ib := shardIndex(names[a]), shardIndex(names[b])
		if ia != ib {
			return ia < ib
		}
		return names[a] < names[b]
	})
}

// collect lists the operation's shards in shard order and stitches their
// pages into one result with global page indices.
func (c *DocumentAIClient) collect(ctx context.Context, req models.OcrRequest, prefix string) (*models.OcrResult, error) {
	names, err := c.storage.List(ctx, c.config.StagingBucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("list OCR output: %w", err)
	}
	var shardNames []string
	for _, name := range names {
		if strings.HasSuffix(name, ".json") {
			shardNames = append(shardNames, name)
		}
	}
	sortShards(shardNames)

	result := &models.OcrResult{
		SourceBucket: req.SourceBucket,
		SourceObject: req.SourceObject,
		Generation:   req.Generation,
	}
	for _, name := range shardNames {
		raw, err := c.storage.Download(ctx, c.config.StagingBucket, name)
		if err != nil {
			return nil, fmt.Errorf("read OCR shard %s: %w", name, err)
		}
		var shard models.DocAIShard
		if err := json.Unmarshal(raw, &shard); err != nil {
			return nil, models.Fatal(fmt.Errorf("decode OCR shard %s: %w", name, err))
		}
		for i := range shard.Pages {
			result.Pages = append(result.Pages, models.Page{
				Index: len(result.Pages),
				Text:  shard.PageText(i),
			})
		}
	}
	if len(shardNames) == 0 {
		return nil, fmt.Errorf("no OCR output found under gs://%s/%s", c.config.StagingBucket, prefix)
	}
	slog.Info("OCR output merged.", "shards", len(shardNames), "pageCount", len(result.Pages))
	return result, nil
}

func (c *DocumentAIClient) Close() error {
	return c.client.Close()
}

// classify marks processor rejections of the input as fatal; everything
// else stays retryable.
func classify(err error) error {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.FailedPrecondition:
		return models.Fatal(err)
	}
	return err
}
