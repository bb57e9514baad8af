package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"feedingest/internal/config"
	"feedingest/internal/domain"
	"feedingest/internal/infrastructure/fetcher"
	"feedingest/internal/infrastructure/parser"
	"feedingest/internal/infrastructure/storage"
	"feedingest/internal/logging"
	"feedingest/internal/restriction"
	"feedingest/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
	out      io.Writer
}

// New builds the pipeline from configuration. The sink is opened in Run.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	client := fetcher.New(fetcher.Options{
		Timeout:           cfg.Fetch.Timeout,
		Headers:           cfg.Fetch.Headers,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
	})

	reader, err := parser.NewFeedReader(client, cfg.ExcludePatterns, baseLogger.With("component", "feed"))
	if err != nil {
		return nil, fmt.Errorf("feed reader: %w", err)
	}

	dispatcher, err := parser.NewDispatcher(cfg.Layouts, baseLogger.With("component", "layout"))
	if err != nil {
		return nil, fmt.Errorf("layouts: %w", err)
	}

	policy, err := usecase.ParseFetchErrorPolicy(cfg.Fetch.OnError)
	if err != nil {
		return nil, err
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Reader:       reader,
		Fetcher:      client,
		Extractor:    dispatcher,
		Restrictions: restriction.NewLimits(cfg.Restrictions.MaximumMaterials, cfg.Restrictions.From(), cfg.Restrictions.To()),
		Pacer:        fetcher.NewRandomPacer(cfg.Fetch.DelayMin, cfg.Fetch.DelayMax),
		Logger:       baseLogger.With("component", "pipeline"),
		OnFetchError: policy,
	})

	return &Application{cfg: cfg, logger: baseLogger, pipeline: pipeline, out: os.Stdout}, nil
}

// Run performs a single ingestion pass over every configured feed.
func (a *Application) Run(ctx context.Context) error {
	sink, err := storage.Open(ctx, a.cfg.Storage, a.out)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := sink.Close(context.WithoutCancel(ctx)); cerr != nil {
			a.logger.Warn("close storage", "error", cerr)
		}
	}()

	pipeline := a.pipeline.WithSink(sink)
	_, err = pipeline.Run(ctx, a.cfg.Feeds, a.cfg.Restrictions.MaximumMaterials)
	if errors.Is(err, domain.ErrFinish) {
		a.logger.Info("restriction limit reached", "reason", err)
		return nil
	}
	return err
}
