package ports

import (
	"context"
	"time"

	"brieflybot/internal/domain"
)

// FetchAdapter pulls candidate items for one configured source. Fetch caps
// results at cfg.MaxItems and returns a *domain.FetchError on failure;
// Available is a cheap local precondition check (credentials present), not a
// network probe.
type FetchAdapter interface {
	Type() domain.SourceType
	Fetch(ctx context.Context, cfg domain.SourceConfig) ([]domain.RawItem, error)
	Available() bool
}

// DedupeStore persists dedupe cache entries across process restarts. Load is
// invoked once at pipeline start, Persist once at pipeline end, never per item.
type DedupeStore interface {
	Load(ctx context.Context) (map[string]time.Time, error)
	Persist(ctx context.Context, entries map[string]time.Time) error
}

// Summarizer turns a run's accepted items into digest text.
type Summarizer interface {
	Summarize(ctx context.Context, items []domain.NormalizedItem) (string, error)
}

// Publisher delivers the final digest to a chat channel.
type Publisher interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
