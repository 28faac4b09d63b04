package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brieflybot/internal/config"
	"brieflybot/internal/dedupe"
	"brieflybot/internal/domain"
	"brieflybot/internal/ports"
	"brieflybot/internal/registry"
	"brieflybot/internal/schedule"
)

type fakeAdapter struct {
	mu         sync.Mutex
	sourceType domain.SourceType
	available  bool
	items      map[string][]domain.RawItem
	errs       map[string]error
	fetched    []string
}

var _ ports.FetchAdapter = (*fakeAdapter)(nil)

func newFakeAdapter(sourceType domain.SourceType) *fakeAdapter {
	return &fakeAdapter{
		sourceType: sourceType,
		available:  true,
		items:      map[string][]domain.RawItem{},
		errs:       map[string]error{},
	}
}

func (f *fakeAdapter) Type() domain.SourceType { return f.sourceType }

func (f *fakeAdapter) Available() bool { return f.available }

func (f *fakeAdapter) Fetch(_ context.Context, cfg domain.SourceConfig) ([]domain.RawItem, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, cfg.Name)
	f.mu.Unlock()

	if err := f.errs[cfg.Name]; err != nil {
		return nil, domain.NewFetchError(cfg.Name, err)
	}

	items := f.items[cfg.Name]
	if len(items) > cfg.MaxItems {
		items = items[:cfg.MaxItems]
	}
	return items, nil
}

func (f *fakeAdapter) fetchCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, fetched := range f.fetched {
		if fetched == name {
			count++
		}
	}
	return count
}

type fakeStore struct {
	entries   map[string]time.Time
	loads     int
	persists  int
	persisted map[string]time.Time
	loadErr   error
}

var _ ports.DedupeStore = (*fakeStore)(nil)

func (s *fakeStore) Load(context.Context) (map[string]time.Time, error) {
	s.loads++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.entries, nil
}

func (s *fakeStore) Persist(_ context.Context, entries map[string]time.Time) error {
	s.persists++
	s.persisted = entries
	return nil
}

func rawItem(title, url string) domain.RawItem {
	return domain.RawItem{Title: title, URL: url, Summary: "summary of " + title}
}

func mustRegistry(t *testing.T, configs ...config.SourceConfig) *registry.Registry {
	t.Helper()
	reg, err := registry.New(configs)
	require.NoError(t, err)
	return reg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func statusByName(t *testing.T, result domain.RunResult, name string) domain.SourceStatus {
	t.Helper()
	for _, status := range result.Statuses {
		if status.Name == name {
			return status
		}
	}
	t.Fatalf("no status for source %s", name)
	return domain.SourceStatus{}
}

func TestRunEndToEndScenario(t *testing.T) {
	t.Parallel()

	arxiv := newFakeAdapter(domain.SourceArxiv)
	arxiv.items["arxiv-ai"] = []domain.RawItem{
		rawItem("Paper One", "https://arxiv.org/abs/2601.00001"),
		rawItem("Paper Two", "https://arxiv.org/abs/2601.00002"),
		rawItem("Paper Three", "https://arxiv.org/abs/2601.00003"),
	}
	news := newFakeAdapter(domain.SourceNewsAPI)

	reg := mustRegistry(t,
		config.SourceConfig{Name: "arxiv-ai", Type: "arxiv", Query: "cat:cs.AI", MaxItems: 2, UpdateIntervalSeconds: 3600, Enabled: true},
		config.SourceConfig{Name: "newsapi-ai", Type: "newsapi", Query: "ai", MaxItems: 10, UpdateIntervalSeconds: 3600, Enabled: false},
	)

	pipe := New(Deps{
		Registry: reg,
		Adapters: []ports.FetchAdapter{arxiv, news},
		Cache:    dedupe.NewCache(100),
		Gate:     schedule.NewGate(),
		Logger:   discardLogger(),
	})

	now := time.Date(2026, time.August, 26, 6, 0, 0, 0, time.UTC)
	first := pipe.Run(context.Background(), now)

	require.Len(t, first.Items, 2, "adapter cap must limit to maxItems")
	assert.Equal(t, "Paper One", first.Items[0].Title)
	assert.Equal(t, "arxiv-ai", first.Items[0].SourceName)
	assert.Equal(t, domain.SourceArxiv, first.Items[0].SourceType)
	assert.Equal(t, now, first.Items[0].CollectedAt)
	assert.NotEmpty(t, first.Items[0].ContentHash)

	assert.Equal(t, domain.OutcomeOK, statusByName(t, first, "arxiv-ai").Outcome)
	assert.Equal(t, 2, statusByName(t, first, "arxiv-ai").Items)
	assert.Equal(t, domain.OutcomeSkippedDisabled, statusByName(t, first, "newsapi-ai").Outcome)
	assert.Equal(t, 0, news.fetchCount("newsapi-ai"))

	// Second run in the same minute: not due, zero items.
	second := pipe.Run(context.Background(), now.Add(time.Minute))
	assert.Empty(t, second.Items)
	assert.Equal(t, domain.OutcomeSkippedNotDue, statusByName(t, second, "arxiv-ai").Outcome)
	assert.Equal(t, 1, arxiv.fetchCount("arxiv-ai"))
}

func TestRunDeduplicatesAcrossSources(t *testing.T) {
	t.Parallel()

	arxiv := newFakeAdapter(domain.SourceArxiv)
	arxiv.items["arxiv-ai"] = []domain.RawItem{
		rawItem("Shared Story", "https://example.com/story?utm_source=atom"),
	}
	rss := newFakeAdapter(domain.SourceRSS)
	rss.items["blog"] = []domain.RawItem{
		rawItem("Shared  Story", "https://example.com/story"),
		rawItem("Unique Story", "https://example.com/unique"),
	}

	reg := mustRegistry(t,
		config.SourceConfig{Name: "arxiv-ai", Type: "arxiv", Query: "q", MaxItems: 10, UpdateIntervalSeconds: 3600, Enabled: true},
		config.SourceConfig{Name: "blog", Type: "rss", Query: "https://example.com/feed", MaxItems: 10, UpdateIntervalSeconds: 3600, Enabled: true},
	)

	pipe := New(Deps{
		Registry: reg,
		Adapters: []ports.FetchAdapter{arxiv, rss},
		Cache:    dedupe.NewCache(100),
		Gate:     schedule.NewGate(),
		Logger:   discardLogger(),
	})

	result := pipe.Run(context.Background(), time.Now())

	require.Len(t, result.Items, 2, "syndicated copy must be dropped")
	assert.Equal(t, "Shared Story", result.Items[0].Title)
	assert.Equal(t, "arxiv-ai", result.Items[0].SourceName, "first reporting source wins")
	assert.Equal(t, "Unique Story", result.Items[1].Title)
}

func TestRunSecondImmediateRunAcceptsNothing(t *testing.T) {
	t.Parallel()

	rss := newFakeAdapter(domain.SourceRSS)
	rss.items["blog"] = []domain.RawItem{rawItem("Story", "https://example.com/story")}

	reg := mustRegistry(t,
		config.SourceConfig{Name: "blog", Type: "rss", Query: "https://example.com/feed", MaxItems: 10, UpdateIntervalSeconds: 1, Enabled: true},
	)

	pipe := New(Deps{
		Registry: reg,
		Adapters: []ports.FetchAdapter{rss},
		Cache:    dedupe.NewCache(100),
		Gate:     schedule.NewGate(),
		Logger:   discardLogger(),
	})

	now := time.Now()
	first := pipe.Run(context.Background(), now)
	require.Len(t, first.Items, 1)

	// Interval elapsed, so the source is fetched again, but every item is a
	// duplicate now.
	second := pipe.Run(context.Background(), now.Add(2*time.Second))
	assert.Empty(t, second.Items)
	assert.Equal(t, domain.OutcomeEmpty, statusByName(t, second, "blog").Outcome)
}

func TestRunFailedSourceMarksRunAndContinues(t *testing.T) {
	t.Parallel()

	arxiv := newFakeAdapter(domain.SourceArxiv)
	arxiv.errs["arxiv-ai"] = errors.New("connection refused")
	rss := newFakeAdapter(domain.SourceRSS)
	rss.items["blog"] = []domain.RawItem{rawItem("Story", "https://example.com/story")}

	reg := mustRegistry(t,
		config.SourceConfig{Name: "arxiv-ai", Type: "arxiv", Query: "q", MaxItems: 10, UpdateIntervalSeconds: 3600, Enabled: true},
		config.SourceConfig{Name: "blog", Type: "rss", Query: "https://example.com/feed", MaxItems: 10, UpdateIntervalSeconds: 3600, Enabled: true},
	)

	gate := schedule.NewGate()
	pipe := New(Deps{
		Registry: reg,
		Adapters: []ports.FetchAdapter{arxiv, rss},
		Cache:    dedupe.NewCache(100),
		Gate:     gate,
		Logger:   discardLogger(),
	})

	now := time.Now()
	result := pipe.Run(context.Background(), now)

	failed := statusByName(t, result, "arxiv-ai")
	assert.Equal(t, domain.OutcomeFailed, failed.Outcome)

	var fetchErr *domain.FetchError
	require.ErrorAs(t, failed.Err, &fetchErr)
	assert.Equal(t, "arxiv-ai", fetchErr.Source)

	// Subsequent sources still processed.
	require.Len(t, result.Items, 1)
	assert.Equal(t, "blog", result.Items[0].SourceName)

	// A failed attempt still consumes the cool-down.
	_, marked := gate.LastRun("arxiv-ai")
	assert.True(t, marked)
	second := pipe.Run(context.Background(), now.Add(time.Minute))
	assert.Equal(t, domain.OutcomeSkippedNotDue, statusByName(t, second, "arxiv-ai").Outcome)
	assert.Equal(t, 1, arxiv.fetchCount("arxiv-ai"))
}

func TestRunUnavailableSourceKeepsRetryClock(t *testing.T) {
	t.Parallel()

	news := newFakeAdapter(domain.SourceNewsAPI)
	news.available = false
	news.items["newsapi-ai"] = []domain.RawItem{rawItem("Story", "https://example.com/story")}

	reg := mustRegistry(t,
		config.SourceConfig{Name: "newsapi-ai", Type: "newsapi", Query: "ai", MaxItems: 10, UpdateIntervalSeconds: 3600, Enabled: true},
	)

	gate := schedule.NewGate()
	pipe := New(Deps{
		Registry: reg,
		Adapters: []ports.FetchAdapter{news},
		Cache:    dedupe.NewCache(100),
		Gate:     gate,
		Logger:   discardLogger(),
	})

	now := time.Now()
	first := pipe.Run(context.Background(), now)
	assert.Equal(t, domain.OutcomeSkippedUnavailable, statusByName(t, first, "newsapi-ai").Outcome)
	assert.Equal(t, 0, news.fetchCount("newsapi-ai"))

	_, marked := gate.LastRun("newsapi-ai")
	assert.False(t, marked, "skipped-unavailable must not consume the cool-down")

	// Credential restored: eligible on the very next tick.
	news.available = true
	second := pipe.Run(context.Background(), now.Add(time.Second))
	assert.Equal(t, domain.OutcomeOK, statusByName(t, second, "newsapi-ai").Outcome)
	require.Len(t, second.Items, 1)
}

func TestRunDropsItemsWithoutAbsoluteURL(t *testing.T) {
	t.Parallel()

	rss := newFakeAdapter(domain.SourceRSS)
	rss.items["blog"] = []domain.RawItem{
		rawItem("No URL", ""),
		rawItem("Relative", "/relative/path"),
		rawItem("Good", "https://example.com/good"),
	}

	reg := mustRegistry(t,
		config.SourceConfig{Name: "blog", Type: "rss", Query: "https://example.com/feed", MaxItems: 10, UpdateIntervalSeconds: 3600, Enabled: true},
	)

	pipe := New(Deps{
		Registry: reg,
		Adapters: []ports.FetchAdapter{rss},
		Cache:    dedupe.NewCache(100),
		Gate:     schedule.NewGate(),
		Logger:   discardLogger(),
	})

	result := pipe.Run(context.Background(), time.Now())
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Good", result.Items[0].Title)
}

func TestRunStoreHooksInvokedOncePerRun(t *testing.T) {
	t.Parallel()

	rss := newFakeAdapter(domain.SourceRSS)
	previouslySeen := rawItem("Old Story", "https://example.com/old")
	rss.items["blog"] = []domain.RawItem{
		previouslySeen,
		rawItem("New Story", "https://example.com/new"),
	}

	store := &fakeStore{entries: map[string]time.Time{
		dedupe.Hash(previouslySeen.Title, previouslySeen.URL): time.Now().Add(-24 * time.Hour),
	}}

	reg := mustRegistry(t,
		config.SourceConfig{Name: "blog", Type: "rss", Query: "https://example.com/feed", MaxItems: 10, UpdateIntervalSeconds: 1, Enabled: true},
	)

	pipe := New(Deps{
		Registry: reg,
		Adapters: []ports.FetchAdapter{rss},
		Cache:    dedupe.NewCache(100),
		Gate:     schedule.NewGate(),
		Store:    store,
		Logger:   discardLogger(),
	})

	now := time.Now()
	result := pipe.Run(context.Background(), now)

	require.Len(t, result.Items, 1, "persisted hash must suppress the old story")
	assert.Equal(t, "New Story", result.Items[0].Title)
	assert.Equal(t, 1, store.loads)
	assert.Equal(t, 1, store.persists)
	assert.Len(t, store.persisted, 2)

	// Load is once per process, persist once per run.
	pipe.Run(context.Background(), now.Add(2*time.Second))
	assert.Equal(t, 1, store.loads)
	assert.Equal(t, 2, store.persists)
}

func TestRunStoreLoadFailureDegradesToMemory(t *testing.T) {
	t.Parallel()

	rss := newFakeAdapter(domain.SourceRSS)
	rss.items["blog"] = []domain.RawItem{rawItem("Story", "https://example.com/story")}

	store := &fakeStore{loadErr: errors.New("connection refused")}

	reg := mustRegistry(t,
		config.SourceConfig{Name: "blog", Type: "rss", Query: "https://example.com/feed", MaxItems: 10, UpdateIntervalSeconds: 3600, Enabled: true},
	)

	pipe := New(Deps{
		Registry: reg,
		Adapters: []ports.FetchAdapter{rss},
		Cache:    dedupe.NewCache(100),
		Gate:     schedule.NewGate(),
		Store:    store,
		Logger:   discardLogger(),
	})

	result := pipe.Run(context.Background(), time.Now())
	require.Len(t, result.Items, 1)
}

func TestRunParallelDeduplicatesConcurrentSources(t *testing.T) {
	t.Parallel()

	rss := newFakeAdapter(domain.SourceRSS)
	configs := make([]config.SourceConfig, 0, 8)
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		rss.items[name] = []domain.RawItem{
			rawItem("Same Everywhere", "https://example.com/same"),
			rawItem("Only "+name, "https://example.com/"+name),
		}
		configs = append(configs, config.SourceConfig{
			Name: name, Type: "rss", Query: "https://example.com/" + name + "/feed",
			MaxItems: 10, UpdateIntervalSeconds: 3600, Enabled: true,
		})
	}

	pipe := New(Deps{
		Registry:    mustRegistry(t, configs...),
		Adapters:    []ports.FetchAdapter{rss},
		Cache:       dedupe.NewCache(1000),
		Gate:        schedule.NewGate(),
		Logger:      discardLogger(),
		Parallelism: 4,
	})

	result := pipe.Run(context.Background(), time.Now())

	// 8 unique per-source items plus exactly one copy of the shared story.
	assert.Len(t, result.Items, 9)
	require.Len(t, result.Statuses, 8)
	for _, status := range result.Statuses {
		assert.Equal(t, domain.OutcomeOK, status.Outcome)
	}
}
