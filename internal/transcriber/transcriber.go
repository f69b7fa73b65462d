// Package transcriber recognizes each segment of a manifest and writes one
// timed transcript for the source.
package transcriber

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/your-org/speechflow/internal/pipeline"
	"github.com/your-org/speechflow/internal/stage"
	"github.com/your-org/speechflow/internal/stt"
	"github.com/your-org/speechflow/pkg/storage/objectstore"
)

const Name = "transcriber"

const transcriptContentType = "application/x-subrip"

type Params struct {
	Store       objectstore.Client
	Recognizer  stt.Recognizer
	StagingDir  string
	Concurrency int
	EventSource string
	Logger      *zap.Logger
}

// Handler implements stage.Handler for segments-ready events.
type Handler struct {
	store       objectstore.Client
	recognizer  stt.Recognizer
	stagingDir  string
	concurrency int
	source      string
	logger      *zap.Logger
}

func New(p Params) *Handler {
	if p.Concurrency < 1 {
		p.Concurrency = 1
	}
	return &Handler{
		store:       p.Store,
		recognizer:  p.Recognizer,
		stagingDir:  p.StagingDir,
		concurrency: p.Concurrency,
		source:      p.EventSource,
		logger:      p.Logger,
	}
}

func (h *Handler) Name() string { return Name }

// Handle writes the transcript and re-emits the received manifest unchanged
// as segments-processed.
func (h *Handler) Handle(ctx context.Context, ev pipeline.Event) (stage.Result, error) {
	if err := ev.Expect(pipeline.TypeSegmentsReady); err != nil {
		return stage.Result{}, err
	}
	m, err := ev.Manifest()
	if err != nil {
		return stage.Result{}, err
	}

	key, err := h.Transcribe(ctx, m)
	if err != nil {
		return stage.Result{}, err
	}

	next := ev.Forward(pipeline.TypeSegmentsProcessed, h.source)
	if next.SourceIdentifier == "" {
		next.SourceIdentifier = m.SourceKey
	}
	return stage.Result{Artifacts: []string{key}, Next: []pipeline.Event{next}}, nil
}

// Transcribe builds and uploads the transcript for m, returning its key.
// Any segment failure aborts before anything is written.
func (h *Handler) Transcribe(ctx context.Context, m pipeline.SegmentManifest) (string, error) {
	if err := m.RequireAscending(); err != nil {
		return "", err
	}

	dir, err := os.MkdirTemp(h.stagingDir, "transcribe-*")
	if err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(dir)

	texts := make([]string, len(m.Segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for i, seg := range m.Segments {
		g.Go(func() error {
			local := filepath.Join(dir, fmt.Sprintf("%d-%s", seg.SequenceIndex, filepath.Base(seg.RemoteObjectKey)))
			if err := h.store.Download(gctx, m.Bucket, seg.RemoteObjectKey, local); err != nil {
				return stage.StoreError("download segment", err)
			}
			text, err := h.recognizer.Recognize(gctx, local)
			if err != nil {
				return pipeline.Wrap(pipeline.KindRecognition, "recognize", fmt.Errorf("segment %d: %w", seg.SequenceIndex, err))
			}
			h.logger.Debug("segment recognized", zap.Int("sequence_index", seg.SequenceIndex), zap.Int("chars", len(text)))
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	// records are numbered by position, so gaps in sequence_index close up
	var b strings.Builder
	for i, seg := range m.Segments {
		b.WriteString(pipeline.FormatRecord(i+1, seg.StartOffsetMs, seg.EndOffsetMs, texts[i]))
	}

	key := pipeline.TranscriptKey(m.ResultPrefix)
	body := b.String()
	if err := h.store.Put(ctx, m.Bucket, key, strings.NewReader(body), int64(len(body)), objectstore.PutOptions{
		ContentType: transcriptContentType,
	}); err != nil {
		return "", stage.StoreError("upload transcript", err)
	}
	h.logger.Info("transcript uploaded", zap.String("key", key), zap.Int("records", len(m.Segments)))
	return key, nil
}
