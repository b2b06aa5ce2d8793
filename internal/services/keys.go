package services

import (
	"fmt"
	"path"
	"strings"
)

// All storage keys are pure functions of the immutable source identity
// (bucket, object name, generation). Duplicate deliveries therefore derive
// the same keys and converge on the same stored objects.

const intermediateSuffix = "/ocr.json"

// IsPDFObject reports whether the uploaded object looks like a PDF, by name
// suffix or declared content type.
func IsPDFObject(name, contentType string) bool {
	if strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return true
	}
	return strings.EqualFold(contentType, "application/pdf")
}

// stem strips the file extension but keeps any directory path, so uploads in
// folders stay grouped in the intermediate and output buckets.
func stem(name string) string {
	return name[:len(name)-len(path.Ext(name))]
}

// IntermediateObject returns the key of the normalized OCR result for a
// source object.
func IntermediateObject(sourceName, generation string) string {
	return fmt.Sprintf("%s/%s%s", stem(sourceName), generation, intermediateSuffix)
}

// StagingPrefix returns the prefix under which Document AI writes its raw
// shard output for a source object. It never collides with an intermediate
// key, so the generation handler ignores shard writes.
func StagingPrefix(sourceName, generation string) string {
	return fmt.Sprintf("staging/%s/%s/", stem(sourceName), generation)
}

// IsIntermediateObject reports whether an object in the intermediate bucket
// is a normalized OCR result, as opposed to a raw staging shard or an
// unrelated write.
func IsIntermediateObject(name string) bool {
	return strings.HasSuffix(name, intermediateSuffix) && !strings.HasPrefix(name, "staging/")
}

// OutputObject derives the final artifact key from an intermediate key.
func OutputObject(intermediateName string) string {
	return strings.TrimSuffix(intermediateName, intermediateSuffix) + ".md"
}

// DocumentID derives the Firestore record ID for a source object. Path
// separators are flattened since document IDs cannot contain slashes.
func DocumentID(sourceName, generation string) string {
	return strings.ReplaceAll(stem(sourceName), "/", "__") + "-" + generation
}

// DocumentIDFromIntermediate recovers the record ID from an intermediate
// key, so the generation stage updates the same record the ingestion stage
// created.
func DocumentIDFromIntermediate(intermediateName string) string {
	trimmed := strings.TrimSuffix(intermediateName, intermediateSuffix)
	i := strings.LastIndex(trimmed, "/")
	if i < 0 {
		return trimmed
	}
	return strings.ReplaceAll(trimmed[:i], "/", "__") + "-" + trimmed[i+1:]
}
