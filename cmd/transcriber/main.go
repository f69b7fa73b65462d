package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/your-org/speechflow/internal/bootstrap"
	"github.com/your-org/speechflow/internal/pipeline"
	"github.com/your-org/speechflow/internal/stage"
	"github.com/your-org/speechflow/internal/stt"
	"github.com/your-org/speechflow/internal/transcriber"
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

	handler := transcriber.New(transcriber.Params{
		Store: app.Store,
		Recognizer: stt.NewOpenAI(stt.Config{
			BaseURL:  cfg.STT.BaseURL,
			APIKey:   cfg.STT.APIKey,
			Model:    cfg.STT.Model,
			Language: cfg.STT.Language,
		}),
		StagingDir:  app.StagingDir(),
		Concurrency: cfg.Pipeline.SegmentConcurrency,
		EventSource: cfg.App.EventSource,
		Logger:      app.Logger,
	})

	if err := app.Serve(ctx, app.Runner(handler), stage.HTTPOptions{}, pipeline.TypeSegmentsReady); err != nil {
		app.Logger.Fatal("transcriber stopped", zap.Error(err))
	}
}
