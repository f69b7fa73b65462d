package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/your-org/speechflow/internal/pipeline"
	"github.com/your-org/speechflow/internal/stage"
)

// Name identifies the stage in logs, spans and the ledger.
const Name = "ingest-filter"

// Handler forwards accepted notification records as source-object-created
// events. It never touches object bytes.
type Handler struct {
	filter *Filter
	source string
	logger *zap.Logger
}

func NewHandler(filter *Filter, eventSource string, logger *zap.Logger) *Handler {
	return &Handler{filter: filter, source: eventSource, logger: logger}
}

func (h *Handler) Name() string { return Name }

func (h *Handler) Handle(ctx context.Context, ev pipeline.Event) (stage.Result, error) {
	n, err := DecodeNotification(ev)
	if err != nil {
		return stage.Result{}, err
	}

	var res stage.Result
	for _, rec := range n.Records {
		src, accepted, err := h.filter.Apply(rec.S3.Bucket.Name, rec.S3.Object.Key)
		if err != nil {
			return stage.Result{}, err
		}
		if !accepted {
			h.logger.Info("ignoring pipeline artifact", zap.String("bucket", src.Bucket), zap.String("key", src.Key))
			res.Suppressed++
			continue
		}

		next, err := pipeline.NewEvent(pipeline.TypeSourceObjectCreated, h.source, src.Key, src)
		if err != nil {
			return stage.Result{}, err
		}
		h.logger.Info("accepted source object", zap.String("bucket", src.Bucket), zap.String("key", src.Key))
		res.Next = append(res.Next, next)
	}
	return res, nil
}
