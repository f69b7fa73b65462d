package objectstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
)

func TestNewRejectsUnknownProvider(t *testing.T) {
	if _, err := New(Config{Provider: "gcs"}); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestTranslateNotFound(t *testing.T) {
	for _, code := range []string{"NoSuchKey", "NoSuchBucket"} {
		err := translate(minio.ErrorResponse{Code: code, Message: "missing"})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for %s, got %v", code, err)
		}
	}
	other := translate(minio.ErrorResponse{Code: "AccessDenied"})
	if errors.Is(other, ErrNotFound) {
		t.Fatalf("access denied must not map to ErrNotFound")
	}
	if translate(nil) != nil {
		t.Fatal("expected nil passthrough")
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	if err := store.Put(ctx, "audio", "demo.mp3", strings.NewReader("abc"), 3, PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	local := filepath.Join(t.TempDir(), "nested", "demo.mp3")
	if err := store.Download(ctx, "audio", "demo.mp3", local); err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, err := os.ReadFile(local)
	if err != nil {
		t.Fatalf("read staged file: %v", err)
	}
	if string(data) != "abc" {
		t.Fatalf("unexpected staged content %q", data)
	}

	if err := store.Upload(ctx, "audio", "results/demo/merged.mp3", local, PutOptions{}); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	keys := store.Keys("audio", "results/")
	if len(keys) != 1 || keys[0] != "results/demo/merged.mp3" {
		t.Fatalf("unexpected keys: %v", keys)
	}

	ok, err := store.Exists(ctx, "other", "demo.mp3")
	if err != nil || ok {
		t.Fatalf("expected object to be scoped to its bucket, got %v %v", ok, err)
	}
}

func TestMemoryMissingObject(t *testing.T) {
	_, err := NewMemory().Get(context.Background(), "audio", "nope.mp3")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
