package arxivapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"golang.org/x/time/rate"

	"brieflybot/internal/domain"
	"brieflybot/internal/ports"
)

const defaultBaseURL = "https://export.arxiv.org/api/query"

// Adapter fetches papers from the ArXiv export API. Responses are Atom
// documents sorted by submission date, newest first.
type Adapter struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ ports.FetchAdapter = (*Adapter)(nil)

// New wires an HTTP client and the API's requested 3-second request spacing.
func New(client *http.Client, logger *slog.Logger) *Adapter {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		baseURL: defaultBaseURL,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(3*time.Second), 1),
		logger:  logger,
	}
}

// Type identifies the adapter inside the pipeline.
func (a *Adapter) Type() domain.SourceType {
	return domain.SourceArxiv
}

// Available is always true: the export API requires no credential.
func (a *Adapter) Available() bool {
	return true
}

// Fetch queries the export API and returns at most cfg.MaxItems papers.
func (a *Adapter) Fetch(ctx context.Context, cfg domain.SourceConfig) ([]domain.RawItem, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, domain.NewFetchError(cfg.Name, err)
	}

	query := url.Values{}
	query.Set("search_query", cfg.Query)
	query.Set("start", "0")
	query.Set("max_results", strconv.Itoa(cfg.MaxItems))
	query.Set("sortBy", "submittedDate")
	query.Set("sortOrder", "descending")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+query.Encode(), nil)
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
		return nil, domain.NewFetchError(cfg.Name, fmt.Errorf("arxiv returned %s", resp.Status))
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, domain.NewFetchError(cfg.Name, fmt.Errorf("parse atom response: %w", err))
	}

	items := make([]domain.RawItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if len(items) >= cfg.MaxItems {
			break
		}
		items = append(items, toRawItem(entry))
	}

	a.logger.Debug("arxiv fetch done", "source", cfg.Name, "items", len(items))
	return items, nil
}

func toRawItem(entry *gofeed.Item) domain.RawItem {
	item := domain.RawItem{
		Title:       strings.TrimSpace(entry.Title),
		URL:         entry.Link,
		Summary:     strings.TrimSpace(entry.Description),
		PublishedAt: entry.PublishedParsed,
		Meta:        map[string]string{},
	}

	if len(entry.Authors) > 0 {
		names := make([]string, 0, len(entry.Authors))
		for _, author := range entry.Authors {
			names = append(names, author.Name)
		}
		item.Meta["authors"] = strings.Join(names, ", ")
	}

	if arxivExt, ok := entry.Extensions["arxiv"]; ok {
		if doi := firstExtensionValue(arxivExt["doi"]); doi != "" {
			item.Meta["doi"] = doi
		}
		if category := firstExtensionAttr(arxivExt["primary_category"], "term"); category != "" {
			item.Meta["category"] = category
		}
	}

	return item
}

func firstExtensionValue(exts []ext.Extension) string {
	if len(exts) == 0 {
		return ""
	}
	return strings.TrimSpace(exts[0].Value)
}

func firstExtensionAttr(exts []ext.Extension, attr string) string {
	if len(exts) == 0 {
		return ""
	}
	return strings.TrimSpace(exts[0].Attrs[attr])
}
