package bus

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/your-org/speechflow/internal/pipeline"
	"github.com/your-org/speechflow/pkg/kafka"
)

// KafkaSource feeds events consumed from a Kafka topic into a stage. Events
// of types the stage does not subscribe to are acknowledged and ignored.
type KafkaSource struct {
	processor Processor
	accepts   map[pipeline.EventType]bool
	logger    *zap.Logger
}

func NewKafkaSource(p Processor, logger *zap.Logger, accepts ...pipeline.EventType) *KafkaSource {
	set := make(map[pipeline.EventType]bool, len(accepts))
	for _, t := range accepts {
		set[t] = true
	}
	return &KafkaSource{processor: p, accepts: set, logger: logger}
}

// Handle processes one consumed message. Malformed messages are logged and
// acknowledged; any other failure is returned so the offset is not committed.
func (s *KafkaSource) Handle(ctx context.Context, msg kafka.Message) error {
	ev, err := pipeline.FromKafka(msg.Headers, msg.Value)
	if err != nil {
		s.logger.Warn("dropping malformed kafka event", zap.Error(err))
		return nil
	}
	if !s.accepts[ev.Type] {
		return nil
	}

	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Headers))
	if _, err := s.processor.Process(ctx, ev); err != nil {
		if pipeline.IsKind(err, pipeline.KindMalformedInput) {
			s.logger.Warn("dropping unprocessable kafka event", zap.String("event_id", ev.ID), zap.Error(err))
			return nil
		}
		return err
	}
	return nil
}
