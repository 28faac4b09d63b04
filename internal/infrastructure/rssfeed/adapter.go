package rssfeed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"brieflybot/internal/domain"
	"brieflybot/internal/ports"
)

// Adapter fetches items from an RSS or Atom feed. The source's query field
// holds the feed URL.
type Adapter struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ ports.FetchAdapter = (*Adapter)(nil)

// New wires an HTTP client with a polite per-request spacing shared across
// all feeds served by this adapter.
func New(client *http.Client, logger *slog.Logger) *Adapter {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		logger:  logger,
	}
}

// Type identifies the adapter inside the pipeline.
func (a *Adapter) Type() domain.SourceType {
	return domain.SourceRSS
}

// Available is always true: feed URLs are validated per source at fetch time
// and need no credential.
func (a *Adapter) Available() bool {
	return true
}

// Fetch parses the configured feed and returns at most cfg.MaxItems entries.
// Feeds usually list entries newest first; the upstream order is preserved.
func (a *Adapter) Fetch(ctx context.Context, cfg domain.SourceConfig) ([]domain.RawItem, error) {
	feedURL := strings.TrimSpace(cfg.Query)
	parsedURL, err := url.Parse(feedURL)
	if err != nil || !parsedURL.IsAbs() || parsedURL.Host == "" {
		return nil, domain.NewFetchError(cfg.Name, fmt.Errorf("invalid feed url %q", feedURL))
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, domain.NewFetchError(cfg.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, domain.NewFetchError(cfg.Name, err)
	}
	req.Header.Set("User-Agent", "brieflybot/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, domain.NewFetchError(cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewFetchError(cfg.Name, fmt.Errorf("feed returned %s", resp.Status))
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, domain.NewFetchError(cfg.Name, fmt.Errorf("parse feed: %w", err))
	}

	items := make([]domain.RawItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if len(items) >= cfg.MaxItems {
			break
		}
		items = append(items, toRawItem(entry))
	}

	a.logger.Debug("rss fetch done", "source", cfg.Name, "feed", feed.Title, "items", len(items))
	return items, nil
}

func toRawItem(entry *gofeed.Item) domain.RawItem {
	item := domain.RawItem{
		Title:       strings.TrimSpace(entry.Title),
		URL:         entry.Link,
		Summary:     stripHTML(entry.Description),
		PublishedAt: entry.PublishedParsed,
		Meta:        map[string]string{},
	}

	if entry.Author != nil && entry.Author.Name != "" {
		item.Meta["author"] = entry.Author.Name
	}
	if len(entry.Categories) > 0 {
		item.Meta["categories"] = strings.Join(entry.Categories, ", ")
	}

	return item
}

// stripHTML reduces the HTML fragments feeds ship in descriptions to plain
// text.
func stripHTML(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" || !strings.Contains(fragment, "<") {
		return fragment
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
