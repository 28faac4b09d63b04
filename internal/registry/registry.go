package registry

import (
	"errors"
	"fmt"
	"sync"

	"brieflybot/internal/config"
	"brieflybot/internal/domain"
)

// ErrUnknownSource reports an enable/disable request for a name that was
// never registered. No state changes when it is returned.
var ErrUnknownSource = errors.New("unknown source")

// ValidationError reports malformed source configuration. It is fatal at
// startup; no partial pipeline run is attempted.
type ValidationError struct {
	Source string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("invalid source configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid source %q: %s", e.Source, e.Reason)
}

// Registry owns the configured source list. Order is configuration-file
// order and stays stable across listings.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	sources map[string]*domain.SourceConfig
}

// New validates raw configuration entries and builds the registry.
func New(configs []config.SourceConfig) (*Registry, error) {
	r := &Registry{sources: make(map[string]*domain.SourceConfig, len(configs))}

	for _, raw := range configs {
		if raw.Name == "" {
			return nil, &ValidationError{Reason: "source name must not be empty"}
		}
		if _, exists := r.sources[raw.Name]; exists {
			return nil, &ValidationError{Source: raw.Name, Reason: "duplicate source name"}
		}

		sourceType, err := domain.ParseSourceType(raw.Type)
		if err != nil {
			return nil, &ValidationError{Source: raw.Name, Reason: err.Error()}
		}
		if raw.MaxItems <= 0 {
			return nil, &ValidationError{Source: raw.Name, Reason: "maxItems must be positive"}
		}
		if raw.UpdateIntervalSeconds <= 0 {
			return nil, &ValidationError{Source: raw.Name, Reason: "updateIntervalSeconds must be positive"}
		}

		cfg := &domain.SourceConfig{
			Name:           raw.Name,
			Type:           sourceType,
			Query:          raw.Query,
			MaxItems:       raw.MaxItems,
			UpdateInterval: raw.Interval(),
			Enabled:        raw.Enabled,
		}
		r.order = append(r.order, raw.Name)
		r.sources[raw.Name] = cfg
	}

	return r, nil
}

// ListEnabled returns enabled sources in configuration order.
func (r *Registry) ListEnabled() []domain.SourceConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.SourceConfig, 0, len(r.order))
	for _, name := range r.order {
		if cfg := r.sources[name]; cfg.Enabled {
			out = append(out, *cfg)
		}
	}
	return out
}

// All returns every registered source in configuration order, regardless of
// the enabled flag; used for status listings.
func (r *Registry) All() []domain.SourceConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.SourceConfig, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.sources[name])
	}
	return out
}

// Enable turns a source on by name.
func (r *Registry) Enable(name string) error {
	return r.setEnabled(name, true)
}

// Disable turns a source off by name.
func (r *Registry) Disable(name string) error {
	return r.setEnabled(name, false)
}

func (r *Registry) setEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, ok := r.sources[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	cfg.Enabled = enabled
	return nil
}
