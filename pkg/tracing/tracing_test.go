package tracing

import (
	"context"
	"testing"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "splitter"})
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown returned error: %v", err)
	}
}

func TestParseResourceAttributes(t *testing.T) {
	got := ParseResourceAttributes(" service.namespace=speechflow, bogus ,deployment.environment = prod,")
	if len(got) != 2 {
		t.Fatalf("expected 2 attributes, got %v", got)
	}
	if got["service.namespace"] != "speechflow" {
		t.Fatalf("unexpected namespace: %q", got["service.namespace"])
	}
	if got["deployment.environment"] != "prod" {
		t.Fatalf("unexpected environment: %q", got["deployment.environment"])
	}
	if len(ParseResourceAttributes("")) != 0 {
		t.Fatal("expected empty map for empty input")
	}
}
