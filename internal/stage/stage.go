// Package stage defines the contract every pipeline stage implements and the
// runner that adds tracing, redelivery bookkeeping and event emission around
// it. Transports (HTTP, Kafka, in-process) are adapters over Runner.Process.
package stage

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/your-org/speechflow/internal/ledger"
	"github.com/your-org/speechflow/internal/pipeline"
	"github.com/your-org/speechflow/pkg/logger"
	"github.com/your-org/speechflow/pkg/storage/objectstore"
	"github.com/your-org/speechflow/pkg/tracing"
)

// Handler is the pure stage contract: one event in, artifacts and follow-up
// events out. Handlers keep no state across invocations.
type Handler interface {
	Name() string
	Handle(ctx context.Context, ev pipeline.Event) (Result, error)
}

// Result describes what one invocation committed and what it wants emitted.
type Result struct {
	Artifacts []string
	Next      []pipeline.Event
	// Suppressed counts inputs the handler deliberately dropped.
	Suppressed int
	// Duplicate is set by the Runner when the event was already processed.
	Duplicate bool
	Emitted   int
}

// Emitter publishes follow-up events to the bus.
type Emitter interface {
	Emit(ctx context.Context, ev pipeline.Event) error
}

// Runner executes a Handler and forwards its follow-up events.
type Runner struct {
	handler Handler
	emitter Emitter
	ledger  ledger.Ledger
	logger  *zap.Logger
	tracer  trace.Tracer
}

type RunnerParams struct {
	Handler Handler
	Emitter Emitter
	Ledger  ledger.Ledger
	Logger  *zap.Logger
}

// NewRunner constructs a Runner. A nil Ledger means no redelivery tracking.
func NewRunner(p RunnerParams) *Runner {
	l := p.Ledger
	if l == nil {
		l = ledger.Nop{}
	}
	return &Runner{
		handler: p.Handler,
		emitter: p.Emitter,
		ledger:  l,
		logger:  p.Logger.With(zap.String("stage", p.Handler.Name())),
		tracer:  tracing.Tracer(p.Handler.Name()),
	}
}

// Name returns the wrapped handler's name.
func (r *Runner) Name() string {
	return r.handler.Name()
}

// Process runs the handler for ev. Emission failures are logged and do not
// fail the invocation: artifacts already written stay committed. A
// DownstreamError from the emitter does fail it, and the event is not marked
// done.
func (r *Runner) Process(ctx context.Context, ev pipeline.Event) (Result, error) {
	ctx, span := r.tracer.Start(ctx, r.handler.Name()+".handle", trace.WithAttributes(
		attribute.String("event.id", ev.ID),
		attribute.String("event.type", string(ev.Type)),
		attribute.String("event.subject", ev.SourceIdentifier),
	))
	defer span.End()

	log := r.logger.With(logger.Event(ev.ID, string(ev.Type), ev.SourceIdentifier)...)
	start := time.Now()

	if ev.ID != "" {
		done, err := r.ledger.Done(ctx, r.handler.Name(), ev.ID)
		if err != nil {
			log.Warn("ledger lookup failed, processing anyway", zap.Error(err))
		}
		if done {
			log.Info("event already processed, skipping redelivery")
			return Result{Duplicate: true}, nil
		}
	}

	log.Info("event received")
	res, err := r.handler.Handle(ctx, ev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("stage failed", zap.String("kind", string(pipeline.KindOf(err))), zap.Error(err))
		return res, err
	}

	for _, next := range res.Next {
		if err := r.emitter.Emit(ctx, next); err != nil {
			var downstream *DownstreamError
			if errors.As(err, &downstream) {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				log.Error("downstream stage failed",
					zap.String("downstream", downstream.Stage),
					zap.String("kind", string(pipeline.KindOf(err))),
					zap.Error(err),
				)
				return res, err
			}
			log.Warn("event emission failed", zap.String("next_type", string(next.Type)), zap.Error(err))
			continue
		}
		res.Emitted++
	}

	if ev.ID != "" {
		if err := r.ledger.MarkDone(ctx, r.handler.Name(), ev.ID); err != nil {
			log.Warn("ledger mark failed", zap.Error(err))
		}
	}

	span.SetAttributes(attribute.Int("artifacts", len(res.Artifacts)), attribute.Int("emitted", res.Emitted))
	log.Info("event processed",
		zap.Int("artifacts", len(res.Artifacts)),
		zap.Int("emitted", res.Emitted),
		zap.Int("suppressed", res.Suppressed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// DownstreamError is returned by an emitter that runs the receiving stage
// synchronously, when that stage fails. The Runner fails the invocation with
// it instead of treating it as a lost delivery.
type DownstreamError struct {
	Stage string
	Err   error
}

func (e *DownstreamError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *DownstreamError) Unwrap() error {
	return e.Err
}

// StoreError classifies an object-store failure: a missing object is
// not_found, anything else transient_io.
func StoreError(op string, err error) error {
	if errors.Is(err, objectstore.ErrNotFound) {
		return pipeline.Wrap(pipeline.KindNotFound, op, err)
	}
	return pipeline.Wrap(pipeline.KindTransientIO, op, err)
}
