package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"brieflybot/internal/domain"
	"brieflybot/internal/ports"
)

const defaultBaseURL = "https://newsapi.org/v2/everything"

// Adapter fetches articles from NewsAPI.org's everything endpoint, sorted by
// publication date, newest first.
type Adapter struct {
	baseURL  string
	apiKey   string
	language string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

var _ ports.FetchAdapter = (*Adapter)(nil)

// New wires the API key from configuration; an empty key leaves the adapter
// unavailable rather than failing fetches.
func New(apiKey, language string, client *http.Client, logger *slog.Logger) *Adapter {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if language == "" {
		language = "en"
	}
	return &Adapter{
		baseURL:  defaultBaseURL,
		apiKey:   apiKey,
		language: language,
		client:   client,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		logger:   logger,
	}
}

// Type identifies the adapter inside the pipeline.
func (a *Adapter) Type() domain.SourceType {
	return domain.SourceNewsAPI
}

// Available reports whether the required API key is configured.
func (a *Adapter) Available() bool {
	return a.apiKey != ""
}

type response struct {
	Status   string    `json:"status"`
	Message  string    `json:"message"`
	Articles []article `json:"articles"`
}

type article struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}

// Fetch queries the everything endpoint and returns at most cfg.MaxItems
// articles.
func (a *Adapter) Fetch(ctx context.Context, cfg domain.SourceConfig) ([]domain.RawItem, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, domain.NewFetchError(cfg.Name, err)
	}

	query := url.Values{}
	query.Set("q", cfg.Query)
	query.Set("language", a.language)
	query.Set("pageSize", strconv.Itoa(cfg.MaxItems))
	query.Set("sortBy", "publishedAt")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, domain.NewFetchError(cfg.Name, err)
	}
	req.Header.Set("X-Api-Key", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, domain.NewFetchError(cfg.Name, err)
	}
	defer resp.Body.Close()

	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, domain.NewFetchError(cfg.Name, fmt.Errorf("decode response: %w", err))
	}

	if resp.StatusCode != http.StatusOK || parsed.Status != "ok" {
		message := parsed.Message
		if message == "" {
			message = resp.Status
		}
		return nil, domain.NewFetchError(cfg.Name, fmt.Errorf("newsapi error: %s", message))
	}

	items := make([]domain.RawItem, 0, len(parsed.Articles))
	for _, art := range parsed.Articles {
		if len(items) >= cfg.MaxItems {
			break
		}
		items = append(items, toRawItem(art))
	}

	a.logger.Debug("newsapi fetch done", "source", cfg.Name, "items", len(items))
	return items, nil
}

func toRawItem(art article) domain.RawItem {
	item := domain.RawItem{
		Title:   strings.TrimSpace(art.Title),
		URL:     art.URL,
		Summary: strings.TrimSpace(art.Description),
		Meta:    map[string]string{},
	}

	if art.Source.Name != "" {
		item.Meta["publisher"] = art.Source.Name
	}
	if art.Author != "" {
		item.Meta["author"] = art.Author
	}

	if ts, err := time.Parse(time.RFC3339, art.PublishedAt); err == nil {
		item.PublishedAt = &ts
	}

	return item
}
