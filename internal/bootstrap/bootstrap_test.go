package bootstrap

import (
	"context"
	"testing"

	"github.com/your-org/speechflow/internal/bus"
	"github.com/your-org/speechflow/internal/ledger"
	"github.com/your-org/speechflow/pkg/storage/objectstore"
)

func TestSetupWithMemoryStore(t *testing.T) {
	t.Setenv("STORAGE_PROVIDER", "memory")
	t.Setenv("K_SINK", "")
	t.Setenv("STAGING_DIR", "/var/tmp/speechflow")

	app, err := Setup(context.Background())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer app.Close(context.Background())

	if _, ok := app.Store.(*objectstore.Memory); !ok {
		t.Fatalf("expected memory store, got %T", app.Store)
	}
	if _, ok := app.Emitter.(bus.Disabled); !ok {
		t.Fatalf("expected disabled emitter without K_SINK, got %T", app.Emitter)
	}
	if _, ok := app.Ledger.(ledger.Nop); !ok {
		t.Fatalf("expected no ledger by default, got %T", app.Ledger)
	}
	if app.StagingDir() != "/var/tmp/speechflow" {
		t.Fatalf("unexpected staging dir %q", app.StagingDir())
	}
}

func TestSetupSelectsEmitter(t *testing.T) {
	t.Setenv("STORAGE_PROVIDER", "memory")
	t.Setenv("K_SINK", "http://broker-ingress.knative-eventing.svc.cluster.local/default/default")

	app, err := Setup(context.Background())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer app.Close(context.Background())
	if _, ok := app.Emitter.(*bus.HTTPEmitter); !ok {
		t.Fatalf("expected HTTP emitter, got %T", app.Emitter)
	}

	t.Setenv("BUS_TRANSPORT", "kafka")
	kafkaApp, err := Setup(context.Background())
	if err != nil {
		t.Fatalf("Setup kafka: %v", err)
	}
	defer kafkaApp.Close(context.Background())
	if _, ok := kafkaApp.Emitter.(*bus.KafkaEmitter); !ok {
		t.Fatalf("expected Kafka emitter, got %T", kafkaApp.Emitter)
	}
}

func TestSetupRejectsUnknownStore(t *testing.T) {
	t.Setenv("STORAGE_PROVIDER", "tape")
	if _, err := Setup(context.Background()); err == nil {
		t.Fatal("expected unsupported provider error")
	}
}

func TestSetupLedgerRequiresRedis(t *testing.T) {
	t.Setenv("STORAGE_PROVIDER", "memory")
	t.Setenv("LEDGER_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "127.0.0.1:1")
	if _, err := Setup(context.Background()); err == nil {
		t.Fatal("expected ledger connection failure")
	}
}
