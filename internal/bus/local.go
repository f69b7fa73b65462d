package bus

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/your-org/speechflow/internal/pipeline"
	"github.com/your-org/speechflow/internal/stage"
)

// Processor is implemented by stage.Runner.
type Processor interface {
	Name() string
	Process(ctx context.Context, ev pipeline.Event) (stage.Result, error)
}

// Local dispatches events to in-process subscribers synchronously, standing
// in for the broker when every stage runs in one process.
type Local struct {
	mu     sync.RWMutex
	subs   map[pipeline.EventType][]Processor
	logger *zap.Logger
}

func NewLocal(logger *zap.Logger) *Local {
	return &Local{
		subs:   map[pipeline.EventType][]Processor{},
		logger: logger,
	}
}

// Subscribe routes events of type t to p.
func (l *Local) Subscribe(t pipeline.EventType, p Processor) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs[t] = append(l.subs[t], p)
}

// Emit delivers ev to every subscriber of its type in subscription order and
// returns the first failure as a stage.DownstreamError.
func (l *Local) Emit(ctx context.Context, ev pipeline.Event) error {
	l.mu.RLock()
	subs := append([]Processor(nil), l.subs[ev.Type]...)
	l.mu.RUnlock()

	if len(subs) == 0 {
		l.logger.Debug("no local subscriber", zap.String("event_type", string(ev.Type)))
		return nil
	}
	for _, p := range subs {
		if _, err := p.Process(ctx, ev); err != nil {
			var downstream *stage.DownstreamError
			if errors.As(err, &downstream) {
				return err
			}
			return &stage.DownstreamError{Stage: p.Name(), Err: err}
		}
	}
	return nil
}
