package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/your-org/speechflow/internal/audio"
	"github.com/your-org/speechflow/internal/bootstrap"
	"github.com/your-org/speechflow/internal/pipeline"
	"github.com/your-org/speechflow/internal/splitter"
	"github.com/your-org/speechflow/internal/stage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Setup(ctx)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer app.Close(context.Background())
	cfg := app.Config

	handler := splitter.New(splitter.Params{
		Store: app.Store,
		Audio: audio.NewFFmpeg(cfg.Media.FFmpegPath, cfg.Media.FFprobePath),
		Silence: audio.SilenceParams{
			MinSilenceMs:      cfg.Splitter.MinSilenceMs,
			ThresholdOffsetDB: cfg.Splitter.SilenceOffsetDB,
		},
		StagingDir:  app.StagingDir(),
		Concurrency: cfg.Pipeline.SegmentConcurrency,
		EventSource: cfg.App.EventSource,
		Logger:      app.Logger,
	})

	if err := app.Serve(ctx, app.Runner(handler), stage.HTTPOptions{}, pipeline.TypeSourceObjectCreated); err != nil {
		app.Logger.Fatal("splitter stopped", zap.Error(err))
	}
}
