package domain

import "time"

// RawItem is article data as returned by a specific source adapter,
// before normalization.
type RawItem struct {
	Title       string
	URL         string
	Summary     string
	PublishedAt *time.Time
	Meta        map[string]string
}

// NormalizedItem is the canonical, source-agnostic article record consumed
// downstream. URL is the stable identity; ContentHash is derived from the
// normalized title and canonical URL only.
type NormalizedItem struct {
	Title       string
	URL         string
	SourceName  string
	SourceType  SourceType
	Summary     string
	PublishedAt *time.Time
	ContentHash string
	CollectedAt time.Time
}

// Outcome classifies what happened to one source during a pipeline run.
type Outcome string

const (
	OutcomeOK                 Outcome = "ok"
	OutcomeEmpty              Outcome = "empty"
	OutcomeFailed             Outcome = "failed"
	OutcomeSkippedNotDue      Outcome = "skipped-not-due"
	OutcomeSkippedUnavailable Outcome = "skipped-unavailable"
	OutcomeSkippedDisabled    Outcome = "skipped-disabled"
)

// SourceStatus reports one source's result for observability.
type SourceStatus struct {
	Name    string
	Outcome Outcome
	Items   int
	Err     error
}

// RunResult is the aggregator's sole output: newly accepted items in
// processing order plus the per-source status report.
type RunResult struct {
	Items     []NormalizedItem
	Statuses  []SourceStatus
	StartedAt time.Time
}
