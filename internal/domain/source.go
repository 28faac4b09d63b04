package domain

import (
	"fmt"
	"time"
)

// SourceType identifies which fetch adapter serves a configured source.
type SourceType string

const (
	SourceArxiv   SourceType = "arxiv"
	SourceNewsAPI SourceType = "newsapi"
	SourceRSS     SourceType = "rss"
)

// ParseSourceType validates a configuration string against the known types.
func ParseSourceType(value string) (SourceType, error) {
	switch SourceType(value) {
	case SourceArxiv, SourceNewsAPI, SourceRSS:
		return SourceType(value), nil
	}
	return "", fmt.Errorf("unknown source type %q", value)
}

// SourceConfig describes a single configured feed of candidate articles.
type SourceConfig struct {
	Name           string
	Type           SourceType
	Query          string
	MaxItems       int
	UpdateInterval time.Duration
	Enabled        bool
}
