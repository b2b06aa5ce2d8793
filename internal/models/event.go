package models

// GCSEvent is the data payload of a google.cloud.storage.object.v1.finalized
// CloudEvent. Delivery is at-least-once; the same object may arrive more
// than once and handlers must converge on a single result.
type GCSEvent struct {
	Bucket      string    `json:"bucket"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType,omitempty"`
	Generation  FlexInt64 `json:"generation,omitempty"`
}
