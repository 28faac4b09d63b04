package pipeline

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"brieflybot/internal/dedupe"
	"brieflybot/internal/domain"
	"brieflybot/internal/ports"
	"brieflybot/internal/registry"
	"brieflybot/internal/schedule"
)

// Deps wires the aggregation pipeline's collaborators.
type Deps struct {
	Registry *registry.Registry
	Adapters []ports.FetchAdapter
	Cache    *dedupe.Cache
	Gate     *schedule.Gate
	Store    ports.DedupeStore
	Logger   *slog.Logger

	// Parallelism bounds concurrent source fetches; values <= 1 keep the
	// sequential reference behavior.
	Parallelism int
}

// Pipeline aggregates items from every enabled, due source, filtering
// duplicates through the shared cache. Per-source failures are contained
// here: a failed fetch contributes zero items and the run always returns.
type Pipeline struct {
	registry    *registry.Registry
	adapters    map[domain.SourceType]ports.FetchAdapter
	cache       *dedupe.Cache
	gate        *schedule.Gate
	store       ports.DedupeStore
	logger      *slog.Logger
	parallelism int
	loaded      bool
}

// New constructs the orchestration component.
func New(deps Deps) *Pipeline {
	adapters := make(map[domain.SourceType]ports.FetchAdapter, len(deps.Adapters))
	for _, adapter := range deps.Adapters {
		adapters[adapter.Type()] = adapter
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		registry:    deps.Registry,
		adapters:    adapters,
		cache:       deps.Cache,
		gate:        deps.Gate,
		store:       deps.Store,
		logger:      logger,
		parallelism: deps.Parallelism,
	}
}

// Run executes one aggregation pass at the given instant and returns the
// newly accepted items plus a per-source status report.
func (p *Pipeline) Run(ctx context.Context, now time.Time) domain.RunResult {
	p.loadStore(ctx)

	sources := p.registry.All()
	statuses := make([]domain.SourceStatus, len(sources))
	accepted := make([][]domain.NormalizedItem, len(sources))

	// Gate and availability checks are cheap and run up front in stable
	// order; only the network fetches fan out when parallelism allows.
	fetchable := make([]int, 0, len(sources))
	for i, cfg := range sources {
		switch {
		case !cfg.Enabled:
			statuses[i] = domain.SourceStatus{Name: cfg.Name, Outcome: domain.OutcomeSkippedDisabled}
		case !p.gate.IsDue(cfg, now):
			statuses[i] = domain.SourceStatus{Name: cfg.Name, Outcome: domain.OutcomeSkippedNotDue}
		default:
			adapter, ok := p.adapters[cfg.Type]
			if !ok || !adapter.Available() {
				// Never attempted, so the source keeps its retry clock.
				p.logger.Warn("source unavailable", "source", cfg.Name, "type", cfg.Type)
				statuses[i] = domain.SourceStatus{Name: cfg.Name, Outcome: domain.OutcomeSkippedUnavailable}
				continue
			}
			fetchable = append(fetchable, i)
		}
	}

	if p.parallelism > 1 {
		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(p.parallelism)
		for _, i := range fetchable {
			i := i
			group.Go(func() error {
				statuses[i], accepted[i] = p.collectSource(groupCtx, sources[i], now)
				return nil
			})
		}
		_ = group.Wait()
	} else {
		for _, i := range fetchable {
			statuses[i], accepted[i] = p.collectSource(ctx, sources[i], now)
		}
	}

	var items []domain.NormalizedItem
	for _, batch := range accepted {
		items = append(items, batch...)
	}

	p.persistStore(ctx)
	p.logger.Info("pipeline run done", "sources", len(sources), "accepted", len(items))

	return domain.RunResult{Items: items, Statuses: statuses, StartedAt: now}
}

func (p *Pipeline) collectSource(ctx context.Context, cfg domain.SourceConfig, now time.Time) (domain.SourceStatus, []domain.NormalizedItem) {
	adapter := p.adapters[cfg.Type]

	raw, err := adapter.Fetch(ctx, cfg)
	// Failed attempts consume the cool-down too; a broken source must not
	// be hammered every tick.
	p.gate.MarkRun(cfg.Name, now)

	if err != nil {
		p.logger.Error("source fetch failed", "source", cfg.Name, "error", err)
		return domain.SourceStatus{Name: cfg.Name, Outcome: domain.OutcomeFailed, Err: err}, nil
	}

	var accepted []domain.NormalizedItem
	for _, item := range raw {
		normalized, ok := p.normalize(item, cfg, now)
		if !ok {
			p.logger.Debug("dropping item without absolute url", "source", cfg.Name, "title", item.Title)
			continue
		}
		if p.cache.Observe(normalized.ContentHash, now) {
			continue
		}
		accepted = append(accepted, normalized)
	}

	p.logger.Info("source collected", "source", cfg.Name, "fetched", len(raw), "accepted", len(accepted))

	if len(accepted) == 0 {
		return domain.SourceStatus{Name: cfg.Name, Outcome: domain.OutcomeEmpty}, nil
	}
	return domain.SourceStatus{Name: cfg.Name, Outcome: domain.OutcomeOK, Items: len(accepted)}, accepted
}

func (p *Pipeline) normalize(item domain.RawItem, cfg domain.SourceConfig, now time.Time) (domain.NormalizedItem, bool) {
	rawURL := strings.TrimSpace(item.URL)
	parsed, err := url.Parse(rawURL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return domain.NormalizedItem{}, false
	}

	return domain.NormalizedItem{
		Title:       strings.TrimSpace(item.Title),
		URL:         rawURL,
		SourceName:  cfg.Name,
		SourceType:  cfg.Type,
		Summary:     strings.TrimSpace(item.Summary),
		PublishedAt: item.PublishedAt,
		ContentHash: dedupe.Hash(item.Title, rawURL),
		CollectedAt: now,
	}, true
}

// loadStore seeds the cache from the durable store once per process; the
// cache itself stays authoritative afterwards.
func (p *Pipeline) loadStore(ctx context.Context) {
	if p.store == nil || p.loaded {
		return
	}
	p.loaded = true

	entries, err := p.store.Load(ctx)
	if err != nil {
		p.logger.Warn("dedupe store load failed, starting empty", "error", err)
		return
	}
	p.cache.Apply(entries)
	p.logger.Info("dedupe store loaded", "entries", len(entries))
}

func (p *Pipeline) persistStore(ctx context.Context) {
	if p.store == nil {
		return
	}

	if err := p.store.Persist(ctx, p.cache.Snapshot()); err != nil {
		p.logger.Warn("dedupe store persist failed", "error", err)
	}
}
