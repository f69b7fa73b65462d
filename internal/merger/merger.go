// Package merger reassembles a manifest's segments, in sequence order, into
// one silence-trimmed recording.
package merger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/your-org/speechflow/internal/audio"
	"github.com/your-org/speechflow/internal/pipeline"
	"github.com/your-org/speechflow/internal/stage"
	"github.com/your-org/speechflow/pkg/storage/objectstore"
)

const Name = "merger"

type Params struct {
	Store       objectstore.Client
	Audio       audio.Processor
	StagingDir  string
	Concurrency int
	Logger      *zap.Logger
}

// Handler implements stage.Handler. It accepts the manifest either straight
// from the splitter or re-emitted by the transcriber.
type Handler struct {
	store       objectstore.Client
	audio       audio.Processor
	stagingDir  string
	concurrency int
	logger      *zap.Logger
}

func New(p Params) *Handler {
	if p.Concurrency < 1 {
		p.Concurrency = 1
	}
	return &Handler{
		store:       p.Store,
		audio:       p.Audio,
		stagingDir:  p.StagingDir,
		concurrency: p.Concurrency,
		logger:      p.Logger,
	}
}

func (h *Handler) Name() string { return Name }

func (h *Handler) Handle(ctx context.Context, ev pipeline.Event) (stage.Result, error) {
	if err := ev.Expect(pipeline.TypeSegmentsProcessed, pipeline.TypeSegmentsReady); err != nil {
		return stage.Result{}, err
	}
	m, err := ev.Manifest()
	if err != nil {
		return stage.Result{}, err
	}

	key, err := h.Merge(ctx, m)
	if err != nil {
		return stage.Result{}, err
	}
	if key == "" {
		return stage.Result{}, nil
	}
	return stage.Result{Artifacts: []string{key}}, nil
}

// Merge concatenates m's segments in ascending sequence order and uploads
// the result. An empty manifest writes nothing and returns an empty key.
func (h *Handler) Merge(ctx context.Context, m pipeline.SegmentManifest) (string, error) {
	segments, err := m.SortedByIndex()
	if err != nil {
		return "", err
	}
	if len(segments) == 0 {
		h.logger.Info("manifest has no segments, nothing to merge", zap.String("result_dir", m.ResultPrefix))
		return "", nil
	}

	dir, err := os.MkdirTemp(h.stagingDir, "merge-*")
	if err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(dir)

	ext := mergedExt(m)
	locals := make([]string, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for i, seg := range segments {
		g.Go(func() error {
			local := filepath.Join(dir, pipeline.ChunkName(seg.SequenceIndex, pipeline.MediaExt(seg.RemoteObjectKey)))
			if err := h.store.Download(gctx, m.Bucket, seg.RemoteObjectKey, local); err != nil {
				return stage.StoreError("download segment", err)
			}
			locals[i] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	merged := filepath.Join(dir, "merged"+ext)
	if err := h.audio.Concat(ctx, locals, merged); err != nil {
		return "", fmt.Errorf("concat %d segments: %w", len(locals), err)
	}

	key := pipeline.MergedKey(m.ResultPrefix, ext)
	if err := h.store.Upload(ctx, m.Bucket, key, merged, objectstore.PutOptions{}); err != nil {
		return "", stage.StoreError("upload merged", err)
	}
	h.logger.Info("merged audio uploaded", zap.String("key", key), zap.Int("segments", len(segments)))
	return key, nil
}

func mergedExt(m pipeline.SegmentManifest) string {
	if m.SourceKey != "" {
		return pipeline.MediaExt(m.SourceKey)
	}
	return pipeline.MediaExt(m.Segments[0].RemoteObjectKey)
}
