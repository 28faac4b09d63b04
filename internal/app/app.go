package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"brieflybot/internal/config"
	"brieflybot/internal/dedupe"
	"brieflybot/internal/domain"
	"brieflybot/internal/infrastructure/arxivapi"
	"brieflybot/internal/infrastructure/llm"
	"brieflybot/internal/infrastructure/newsapi"
	"brieflybot/internal/infrastructure/rssfeed"
	"brieflybot/internal/infrastructure/scheduler"
	"brieflybot/internal/infrastructure/slack"
	"brieflybot/internal/infrastructure/store"
	"brieflybot/internal/logging"
	"brieflybot/internal/pipeline"
	"brieflybot/internal/ports"
	"brieflybot/internal/registry"
	"brieflybot/internal/schedule"
)

// Application wires configuration to the collection pipeline and its
// downstream collaborators.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	registry   *registry.Registry
	pipeline   *pipeline.Pipeline
	summarizer ports.Summarizer
	publisher  ports.Publisher
	scheduler  ports.Scheduler
}

// New builds a runnable application instance. Source configuration problems
// are fatal; a missing dedupe store backend only degrades to in-memory
// deduplication.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	reg, err := registry.New(cfg.Sources)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}

	adapters := []ports.FetchAdapter{
		arxivapi.New(nil, baseLogger.With("component", "adapter.arxiv")),
		newsapi.New(cfg.NewsAPI.APIKey, cfg.NewsAPI.Language, nil, baseLogger.With("component", "adapter.newsapi")),
		rssfeed.New(nil, baseLogger.With("component", "adapter.rss")),
	}

	dedupeStore := openDedupeStore(ctx, cfg.Dedupe, baseLogger)

	pipe := pipeline.New(pipeline.Deps{
		Registry:    reg,
		Adapters:    adapters,
		Cache:       dedupe.NewCache(cfg.Dedupe.MaxEntries),
		Gate:        schedule.NewGate(),
		Store:       dedupeStore,
		Logger:      baseLogger.With("component", "pipeline"),
		Parallelism: cfg.Pipeline.Parallelism,
	})

	a := &Application{
		cfg:       cfg,
		logger:    baseLogger,
		registry:  reg,
		pipeline:  pipe,
		scheduler: scheduler.NewCronScheduler(cfg.Scheduler.CronExpression),
	}

	if cfg.OpenAI.APIKey != "" {
		a.summarizer = llm.NewSummarizer(cfg.OpenAI)
	}
	if cfg.Slack.WebhookURL != "" {
		a.publisher = slack.NewPublisher(cfg.Slack.WebhookURL)
	}

	return a, nil
}

func openDedupeStore(ctx context.Context, cfg config.DedupeConfig, logger *slog.Logger) ports.DedupeStore {
	switch cfg.Store {
	case "":
		return nil
	case "postgres":
		s, err := store.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Warn("postgres dedupe store unavailable, using in-memory only", "error", err)
			return nil
		}
		return s
	case "redis":
		s, err := store.OpenRedis(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis dedupe store unavailable, using in-memory only", "error", err)
			return nil
		}
		return s
	default:
		logger.Warn("unknown dedupe store, using in-memory only", "store", cfg.Store)
		return nil
	}
}

// Registry exposes the source registry for CLI listings and enable/disable.
func (a *Application) Registry() *registry.Registry {
	return a.registry
}

// RunOnce executes a single collection pass and returns its result.
func (a *Application) RunOnce(ctx context.Context) domain.RunResult {
	return a.pipeline.Run(ctx, time.Now())
}

// RunAndPublish executes a collection pass and, when a publisher is
// configured, delivers a digest of the newly accepted items.
func (a *Application) RunAndPublish(ctx context.Context) (domain.RunResult, error) {
	result := a.pipeline.Run(ctx, time.Now())

	if len(result.Items) == 0 || a.publisher == nil {
		return result, nil
	}

	digest := a.buildDigest(ctx, result.Items)
	if err := a.publisher.PublishDigest(ctx, digest); err != nil {
		return result, fmt.Errorf("publish digest: %w", err)
	}

	return result, nil
}

func (a *Application) buildDigest(ctx context.Context, items []domain.NormalizedItem) string {
	if a.summarizer != nil {
		digest, err := a.summarizer.Summarize(ctx, items)
		if err == nil && digest != "" {
			return digest
		}
		if err != nil {
			a.logger.Warn("summarizer failed, falling back to truncation", "error", err)
		}
	}
	return llm.FallbackDigest(items)
}

// StartSchedule begins recurring collect-and-publish runs.
func (a *Application) StartSchedule(ctx context.Context) error {
	job := func(trigger time.Time) {
		if _, err := a.RunAndPublish(ctx); err != nil {
			a.logger.Error("scheduled run failed", "error", err)
		}
	}
	return a.scheduler.Start(ctx, job)
}

// StopSchedule tears down the scheduler.
func (a *Application) StopSchedule(ctx context.Context) error {
	return a.scheduler.Stop(ctx)
}
