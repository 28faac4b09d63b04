package schedule

import (
	"sync"
	"time"

	"brieflybot/internal/domain"
)

// Gate decides whether a source is due to run, based on its last attempted
// run and configured update interval. MarkRun is called after every fetch
// attempt, success or failure, so a persistently broken source cools down
// instead of being retried every tick.
type Gate struct {
	mu      sync.Mutex
	lastRun map[string]time.Time
}

// NewGate builds a gate with no recorded runs; every source is due initially.
func NewGate() *Gate {
	return &Gate{lastRun: make(map[string]time.Time)}
}

// IsDue reports whether the source should be fetched now. A source with no
// recorded run is always due; otherwise elapsed >= interval (inclusive).
func (g *Gate) IsDue(cfg domain.SourceConfig, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	last, ok := g.lastRun[cfg.Name]
	if !ok {
		return true
	}
	return now.Sub(last) >= cfg.UpdateInterval
}

// MarkRun unconditionally records an attempt for the source.
func (g *Gate) MarkRun(name string, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lastRun[name] = now
}

// LastRun returns the last attempt time, if any.
func (g *Gate) LastRun(name string) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	last, ok := g.lastRun[name]
	return last, ok
}
