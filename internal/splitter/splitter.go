// Package splitter partitions a source recording into its non-silent
// segments and publishes the segment manifest.
package splitter

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

const Name = "splitter"

type Params struct {
	Store       objectstore.Client
	Audio       audio.Processor
	Silence     audio.SilenceParams
	StagingDir  string
	Concurrency int
	EventSource string
	Logger      *zap.Logger
}

// Handler implements stage.Handler for source-object-created events.
type Handler struct {
	store       objectstore.Client
	audio       audio.Processor
	silence     audio.SilenceParams
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
		audio:       p.Audio,
		silence:     p.Silence,
		stagingDir:  p.StagingDir,
		concurrency: p.Concurrency,
		source:      p.EventSource,
		logger:      p.Logger,
	}
}

func (h *Handler) Name() string { return Name }

func (h *Handler) Handle(ctx context.Context, ev pipeline.Event) (stage.Result, error) {
	if err := ev.Expect(pipeline.TypeSourceObjectCreated); err != nil {
		return stage.Result{}, err
	}
	src, err := ev.SourceObject()
	if err != nil {
		return stage.Result{}, err
	}

	manifest, err := h.Split(ctx, src)
	if err != nil {
		return stage.Result{}, err
	}

	next, err := pipeline.NewEvent(pipeline.TypeSegmentsReady, h.source, src.Key, manifest)
	if err != nil {
		return stage.Result{}, err
	}
	artifacts := make([]string, len(manifest.Segments))
	for i, seg := range manifest.Segments {
		artifacts[i] = seg.RemoteObjectKey
	}
	return stage.Result{Artifacts: artifacts, Next: []pipeline.Event{next}}, nil
}

// Split downloads src, detects its non-silent spans and uploads one object
// per span. A fully silent source yields a manifest with no segments.
func (h *Handler) Split(ctx context.Context, src pipeline.SourceObject) (pipeline.SegmentManifest, error) {
	dir, err := os.MkdirTemp(h.stagingDir, "split-*")
	if err != nil {
		return pipeline.SegmentManifest{}, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(dir)

	ext := pipeline.MediaExt(src.Key)
	local := filepath.Join(dir, "source"+ext)
	if err := h.store.Download(ctx, src.Bucket, src.Key, local); err != nil {
		return pipeline.SegmentManifest{}, stage.StoreError("download source", err)
	}

	spans, err := h.audio.DetectNonSilent(ctx, local, h.silence)
	if err != nil {
		return pipeline.SegmentManifest{}, fmt.Errorf("detect non-silent spans: %w", err)
	}
	if err := pipeline.CheckSpans(spans); err != nil {
		return pipeline.SegmentManifest{}, err
	}

	prefix := pipeline.ResultPrefix(src.Key)
	segments := make([]pipeline.Segment, len(spans))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for i, span := range spans {
		index := i + 1
		g.Go(func() error {
			staging := pipeline.ChunkStagingPath(index, ext)
			chunkPath := filepath.Join(dir, filepath.FromSlash(staging))
			if err := h.audio.Slice(gctx, local, span, chunkPath); err != nil {
				return fmt.Errorf("slice segment %d %s: %w", index, span, err)
			}
			key := pipeline.ChunkKey(prefix, index, ext)
			if err := h.store.Upload(gctx, src.Bucket, key, chunkPath, objectstore.PutOptions{}); err != nil {
				return stage.StoreError("upload segment", err)
			}
			h.logger.Debug("segment uploaded", zap.Int("sequence_index", index), zap.String("key", key))
			segments[i] = pipeline.Segment{
				SequenceIndex:    index,
				LocalStagingPath: staging,
				RemoteObjectKey:  key,
				StartOffsetMs:    span.StartMs,
				EndOffsetMs:      span.EndMs,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return pipeline.SegmentManifest{}, err
	}

	h.logger.Info("source split", zap.String("key", src.Key), zap.Int("segments", len(segments)))
	return pipeline.SegmentManifest{
		Bucket:       src.Bucket,
		ResultPrefix: prefix,
		Segments:     segments,
		SourceKey:    src.Key,
	}, nil
}
