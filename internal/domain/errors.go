package domain

import "fmt"

// FetchError wraps a single source's network or parse failure. The pipeline
// contains it at the loop boundary; it never aborts the run.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch source %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError tags an underlying cause with the failing source name.
func NewFetchError(source string, err error) *FetchError {
	return &FetchError{Source: source, Err: err}
}
