package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBinaryEventRoundTrip(t *testing.T) {
	ev, err := NewEvent(TypeSegmentsReady, "audio-splitter-service", "demo.mp3", manifestWith(1, 2))
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	req, err := NewHTTPRequest(context.Background(), "http://sink.invalid/", ev)
	if err != nil {
		t.Fatalf("NewHTTPRequest: %v", err)
	}
	if req.Header.Get("ce-specversion") != "1.0" {
		t.Fatalf("missing specversion header: %v", req.Header)
	}

	got, err := DecodeHTTP(req)
	if err != nil {
		t.Fatalf("DecodeHTTP: %v", err)
	}
	if got.ID != ev.ID || got.Type != ev.Type || got.SourceIdentifier != "demo.mp3" {
		t.Fatalf("unexpected envelope: %+v", got)
	}
	m, err := got.Manifest()
	if err != nil {
		t.Fatalf("Manifest: %v", err)
	}
	if len(m.Segments) != 2 || m.Segments[1].SequenceIndex != 2 {
		t.Fatalf("unexpected manifest: %+v", m)
	}
}

func TestDecodeHTTPRequiresAllBinaryHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"bucket":"a","key":"b"}`))
	req.Header.Set("ce-type", string(TypeSourceObjectCreated))
	req.Header.Set("ce-specversion", "1.0")
	_, err := DecodeHTTP(req)
	if !IsKind(err, KindMalformedInput) {
		t.Fatalf("expected malformed input, got %v", err)
	}
}

func TestDecodeHTTPFallsBackToIDForSubject(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"bucket":"a","key":"b.mp3"}`))
	req.Header.Set("ce-specversion", "1.0")
	req.Header.Set("ce-type", string(TypeSourceObjectCreated))
	req.Header.Set("ce-source", "minio-processor")
	req.Header.Set("ce-id", "b.mp3")
	ev, err := DecodeHTTP(req)
	if err != nil {
		t.Fatalf("DecodeHTTP: %v", err)
	}
	if ev.SourceIdentifier != "b.mp3" {
		t.Fatalf("expected subject fallback to id, got %q", ev.SourceIdentifier)
	}
}

func TestDecodeHTTPStructuredAndBare(t *testing.T) {
	structured := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"specversion":"1.0","type":"dev.knative.minio.object.created","source":"s","id":"1","data":{"bucket":"audio","key":"demo.mp3"}}`))
	structured.Header.Set("Content-Type", "application/cloudevents+json; charset=utf-8")

	wrapped := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"data":{"bucket":"audio","key":"demo.mp3"}}`))
	bare := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"bucket":"audio","key":"demo.mp3"}`))

	for name, req := range map[string]*http.Request{"structured": structured, "wrapped": wrapped, "bare": bare} {
		ev, err := DecodeHTTP(req)
		if err != nil {
			t.Fatalf("%s: DecodeHTTP: %v", name, err)
		}
		src, err := ev.SourceObject()
		if err != nil {
			t.Fatalf("%s: SourceObject: %v", name, err)
		}
		if src.Bucket != "audio" || src.Key != "demo.mp3" {
			t.Fatalf("%s: unexpected source %+v", name, src)
		}
	}
}

func TestDecodeHTTPRejectsInvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))
	if _, err := DecodeHTTP(req); !IsKind(err, KindMalformedInput) {
		t.Fatalf("expected malformed input, got %v", err)
	}
}

func TestKafkaRecordRoundTrip(t *testing.T) {
	ev, err := NewEvent(TypeSourceObjectCreated, "ingest", "demo.mp3", SourceObject{Bucket: "audio", Key: "demo.mp3"})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	key, value, headers := KafkaRecord(ev)
	if string(key) != "demo.mp3" {
		t.Fatalf("unexpected key %q", key)
	}
	if headers["ce_type"] != string(TypeSourceObjectCreated) {
		t.Fatalf("unexpected headers %v", headers)
	}
	got, err := FromKafka(headers, value)
	if err != nil {
		t.Fatalf("FromKafka: %v", err)
	}
	if got.ID != ev.ID || got.SourceIdentifier != ev.SourceIdentifier {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestExpect(t *testing.T) {
	ev := Event{Type: TypeSegmentsProcessed}
	if err := ev.Expect(TypeSegmentsReady, TypeSegmentsProcessed); err != nil {
		t.Fatalf("Expect: %v", err)
	}
	if err := ev.Expect(TypeSourceObjectCreated); !IsKind(err, KindMalformedInput) {
		t.Fatalf("expected malformed input, got %v", err)
	}
	if err := (Event{}).Expect(TypeSourceObjectCreated); err != nil {
		t.Fatalf("untyped events must be accepted: %v", err)
	}
}

func TestForwardKeepsPayloadAndSubject(t *testing.T) {
	ev, err := NewEvent(TypeSegmentsReady, "splitter", "demo.mp3", manifestWith(1))
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	fwd := ev.Forward(TypeSegmentsProcessed, "transcriber")
	if fwd.ID == ev.ID {
		t.Fatal("expected a fresh id")
	}
	if string(fwd.Data) != string(ev.Data) || fwd.SourceIdentifier != ev.SourceIdentifier {
		t.Fatalf("forwarded event lost payload: %+v", fwd)
	}
}
