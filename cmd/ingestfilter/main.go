package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/your-org/speechflow/internal/bootstrap"
	"github.com/your-org/speechflow/internal/ingest"
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

	filter := ingest.NewFilter(cfg.Filter.ExcludedPrefixes, cfg.Filter.ExcludedSuffixes)
	runner := app.Runner(ingest.NewHandler(filter, cfg.App.EventSource, app.Logger))

	opts := stage.HTTPOptions{EventPaths: []string{ingest.NotificationPath}}
	if cfg.Upload.Enabled {
		params := ingest.UploaderParams{
			Store:  app.Store,
			Bucket: cfg.Upload.Bucket,
			Filter: filter,
			Logger: app.Logger,
		}
		if cfg.Upload.Announce {
			params.Announcer = runner
		}
		opts.Routes = ingest.UploadRoutes(ingest.NewUploader(params), app.Logger, cfg.Upload.MaxSizeBytes, cfg.Upload.MultipartMemBytes)
	}

	if err := app.Serve(ctx, runner, opts); err != nil {
		app.Logger.Fatal("ingest filter stopped", zap.Error(err))
	}
}
