// Package bus carries pipeline events between stages: CloudEvents over HTTP
// to a broker sink, Kafka, or an in-process dispatcher.
package bus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/your-org/speechflow/internal/pipeline"
)

// HTTPEmitter posts binary-mode CloudEvents to a broker ingress (K_SINK).
type HTTPEmitter struct {
	sinkURL string
	client  *http.Client
}

// NewHTTPEmitter constructs an emitter for sinkURL.
func NewHTTPEmitter(sinkURL string, timeout time.Duration) *HTTPEmitter {
	return &HTTPEmitter{
		sinkURL: sinkURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (e *HTTPEmitter) Emit(ctx context.Context, ev pipeline.Event) error {
	req, err := pipeline.NewHTTPRequest(ctx, e.sinkURL, ev)
	if err != nil {
		return err
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := e.client.Do(req)
	if err != nil {
		return pipeline.Wrap(pipeline.KindTransientIO, "emit", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return pipeline.Errorf(pipeline.KindTransientIO, "emit", "sink responded %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Publisher is the subset of the Kafka producer the emitter needs.
type Publisher interface {
	Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error
}

// KafkaEmitter publishes events using the CloudEvents Kafka binding.
type KafkaEmitter struct {
	producer Publisher
}

func NewKafkaEmitter(producer Publisher) *KafkaEmitter {
	return &KafkaEmitter{producer: producer}
}

func (e *KafkaEmitter) Emit(ctx context.Context, ev pipeline.Event) error {
	key, value, headers := pipeline.KafkaRecord(ev)
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))
	if err := e.producer.Publish(ctx, key, value, headers); err != nil {
		return pipeline.Wrap(pipeline.KindTransientIO, "emit", fmt.Errorf("publish %s: %w", ev.Type, err))
	}
	return nil
}

// Disabled drops events. It is used when no sink is configured.
type Disabled struct {
	Logger *zap.Logger
}

func (d Disabled) Emit(ctx context.Context, ev pipeline.Event) error {
	if d.Logger != nil {
		d.Logger.Info("no event sink configured, event not sent",
			zap.String("event_type", string(ev.Type)),
			zap.String("subject", ev.SourceIdentifier),
		)
	}
	return nil
}
