// Command pipeline runs every stage in one process. Events travel through an
// in-process dispatcher instead of a broker, so one upload or bucket
// notification produces the transcript and merged audio before the request
// returns.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/your-org/speechflow/internal/audio"
	"github.com/your-org/speechflow/internal/bootstrap"
	"github.com/your-org/speechflow/internal/bus"
	"github.com/your-org/speechflow/internal/ingest"
	"github.com/your-org/speechflow/internal/merger"
	"github.com/your-org/speechflow/internal/pipeline"
	"github.com/your-org/speechflow/internal/splitter"
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

	entry, opts := wire(app,
		audio.NewFFmpeg(cfg.Media.FFmpegPath, cfg.Media.FFprobePath),
		stt.NewOpenAI(stt.Config{
			BaseURL:  cfg.STT.BaseURL,
			APIKey:   cfg.STT.APIKey,
			Model:    cfg.STT.Model,
			Language: cfg.STT.Language,
		}),
	)

	if err := app.Serve(ctx, entry, opts); err != nil {
		app.Logger.Fatal("pipeline stopped", zap.Error(err))
	}
}

// wire chains the four stages over a local dispatcher and returns the
// ingest filter runner, which is the only one exposed over HTTP.
func wire(app *bootstrap.App, proc audio.Processor, recognizer stt.Recognizer) (*stage.Runner, stage.HTTPOptions) {
	cfg := app.Config
	local := bus.NewLocal(app.Logger)
	app.Emitter = local

	filter := ingest.NewFilter(cfg.Filter.ExcludedPrefixes, cfg.Filter.ExcludedSuffixes)
	entry := app.Runner(ingest.NewHandler(filter, cfg.App.EventSource, app.Logger))

	local.Subscribe(pipeline.TypeSourceObjectCreated, app.Runner(splitter.New(splitter.Params{
		Store: app.Store,
		Audio: proc,
		Silence: audio.SilenceParams{
			MinSilenceMs:      cfg.Splitter.MinSilenceMs,
			ThresholdOffsetDB: cfg.Splitter.SilenceOffsetDB,
		},
		StagingDir:  app.StagingDir(),
		Concurrency: cfg.Pipeline.SegmentConcurrency,
		EventSource: cfg.App.EventSource,
		Logger:      app.Logger,
	})))
	local.Subscribe(pipeline.TypeSegmentsReady, app.Runner(transcriber.New(transcriber.Params{
		Store:       app.Store,
		Recognizer:  recognizer,
		StagingDir:  app.StagingDir(),
		Concurrency: cfg.Pipeline.SegmentConcurrency,
		EventSource: cfg.App.EventSource,
		Logger:      app.Logger,
	})))
	local.Subscribe(pipeline.TypeSegmentsProcessed, app.Runner(merger.New(merger.Params{
		Store:       app.Store,
		Audio:       proc,
		StagingDir:  app.StagingDir(),
		Concurrency: cfg.Pipeline.SegmentConcurrency,
		Logger:      app.Logger,
	})))

	routes := []func(chi.Router){ingest.ProcessRoutes(cfg.Upload.Bucket, entry, app.Logger)}
	if cfg.Upload.Enabled {
		params := ingest.UploaderParams{
			Store:  app.Store,
			Bucket: cfg.Upload.Bucket,
			Filter: filter,
			Logger: app.Logger,
		}
		// an in-memory store never sends bucket notifications
		if cfg.Upload.Announce || cfg.Storage.Provider == "memory" {
			params.Announcer = entry
		}
		routes = append(routes, ingest.UploadRoutes(ingest.NewUploader(params), app.Logger, cfg.Upload.MaxSizeBytes, cfg.Upload.MultipartMemBytes))
	}

	opts := stage.HTTPOptions{
		EventPaths: []string{ingest.NotificationPath},
		Routes: func(r chi.Router) {
			for _, mount := range routes {
				mount(r)
			}
		},
	}
	return entry, opts
}
