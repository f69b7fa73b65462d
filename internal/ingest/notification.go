package ingest

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/your-org/speechflow/internal/pipeline"
)

// Notification is the S3-compatible "object created" payload MinIO posts.
type Notification struct {
	EventName string   `json:"EventName,omitempty"`
	Key       string   `json:"Key,omitempty"`
	Records   []Record `json:"Records"`
}

type Record struct {
	EventName string   `json:"eventName,omitempty"`
	S3        S3Entity `json:"s3"`
}

type S3Entity struct {
	Bucket struct {
		Name string `json:"name"`
	} `json:"bucket"`
	Object struct {
		Key  string `json:"key"`
		Size int64  `json:"size,omitempty"`
	} `json:"object"`
}

// NewNotification builds a single-record notification the way MinIO
// encodes it, with the object key percent-encoded.
func NewNotification(bucket, key string) Notification {
	var rec Record
	rec.EventName = "s3:ObjectCreated:Put"
	rec.S3.Bucket.Name = bucket
	rec.S3.Object.Key = url.QueryEscape(key)
	return Notification{
		EventName: rec.EventName,
		Key:       bucket + "/" + key,
		Records:   []Record{rec},
	}
}

// DecodeNotification reads the notification carried by ev. A payload without
// a Records array, or a record without bucket or key, is malformed.
func DecodeNotification(ev pipeline.Event) (Notification, error) {
	var probe struct {
		Records *json.RawMessage `json:"Records"`
	}
	if err := json.Unmarshal(ev.Data, &probe); err != nil {
		return Notification{}, pipeline.Wrap(pipeline.KindMalformedInput, "notification", fmt.Errorf("decode: %w", err))
	}
	if probe.Records == nil {
		return Notification{}, pipeline.Errorf(pipeline.KindMalformedInput, "notification", "missing Records")
	}

	var n Notification
	if err := json.Unmarshal(ev.Data, &n); err != nil {
		return Notification{}, pipeline.Wrap(pipeline.KindMalformedInput, "notification", fmt.Errorf("decode records: %w", err))
	}
	for i, rec := range n.Records {
		if rec.S3.Bucket.Name == "" || rec.S3.Object.Key == "" {
			return Notification{}, pipeline.Errorf(pipeline.KindMalformedInput, "notification", "record %d: bucket name and object key are required", i)
		}
	}
	return n, nil
}
