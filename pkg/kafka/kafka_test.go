package kafka

import (
	"testing"

	kafkago "github.com/segmentio/kafka-go"
)

func TestCompressionFromString(t *testing.T) {
	tests := map[string]kafkago.Compression{
		"gzip":    kafkago.Gzip,
		"LZ4":     kafkago.Lz4,
		"zstd":    kafkago.Zstd,
		"snappy":  kafkago.Snappy,
		"unknown": kafkago.Snappy,
	}
	for name, want := range tests {
		if got := CompressionFromString(name); got != want {
			t.Fatalf("CompressionFromString(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestNewMessageSortsHeaders(t *testing.T) {
	msg := newMessage([]byte("demo.mp3"), []byte("{}"), map[string]string{
		"ce_type":        "dev.knative.audio.chunks.ready",
		"ce_id":          "1",
		"ce_specversion": "1.0",
	})
	if string(msg.Key) != "demo.mp3" {
		t.Fatalf("unexpected key %q", msg.Key)
	}
	want := []string{"ce_id", "ce_specversion", "ce_type"}
	if len(msg.Headers) != len(want) {
		t.Fatalf("expected %d headers, got %d", len(want), len(msg.Headers))
	}
	for i, h := range msg.Headers {
		if h.Key != want[i] {
			t.Fatalf("header %d = %q, want %q", i, h.Key, want[i])
		}
	}
}

func TestFromKafkaFlattensHeaders(t *testing.T) {
	m := fromKafka(kafkago.Message{
		Key:     []byte("k"),
		Value:   []byte("v"),
		Headers: []kafkago.Header{{Key: "ce_type", Value: []byte("t")}},
	})
	if m.Headers["ce_type"] != "t" || string(m.Value) != "v" {
		t.Fatalf("unexpected message: %+v", m)
	}
}
