package logger

import "testing"

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud", "splitter"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewAcceptsMixedCaseLevel(t *testing.T) {
	l, err := New("DEBUG", "merger")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if !l.Core().Enabled(-1) {
		t.Fatal("expected debug level to be enabled")
	}
}

func TestEventFields(t *testing.T) {
	fields := Event("id-1", "dev.knative.audio.chunks.ready", "demo.mp3")
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}
	if fields[2].Key != "subject" || fields[2].String != "demo.mp3" {
		t.Fatalf("unexpected subject field: %+v", fields[2])
	}
}
