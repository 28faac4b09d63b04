package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"brieflybot/internal/config"
	"brieflybot/internal/domain"
	"brieflybot/internal/ports"
)

const fallbackSummaryLen = 200

// Summarizer produces digest text from collected items via an
// OpenAI-compatible chat completions endpoint.
type Summarizer struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.Summarizer = (*Summarizer)(nil)

// NewSummarizer builds a client from configuration.
func NewSummarizer(cfg config.OpenAIConfig) *Summarizer {
	return &Summarizer{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// Summarize posts the items as a user message and returns the completion.
func (s *Summarizer) Summarize(ctx context.Context, items []domain.NormalizedItem) (string, error) {
	if s.apiKey == "" || s.endpoint == "" || s.model == "" {
		return "", fmt.Errorf("summarizer misconfigured")
	}
	if len(items) == 0 {
		return "", nil
	}

	payload, err := buildItemsJSON(items)
	if err != nil {
		return "", fmt.Errorf("marshal items: %w", err)
	}

	body, err := json.Marshal(map[string]any{
		"model": s.model,
		"messages": []map[string]string{
			{"role": "system", "content": safePrompt(s.systemPrompt)},
			{"role": "user", "content": string(payload)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send summarize request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("summarizer error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("summarizer returned no choices")
	}

	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// FallbackDigest builds a plain truncated digest when no summarizer is
// configured or the API call failed.
func FallbackDigest(items []domain.NormalizedItem) string {
	if len(items) == 0 {
		return ""
	}

	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "- %s\n", item.Title)
		if summary := truncate(item.Summary, fallbackSummaryLen); summary != "" {
			fmt.Fprintf(&b, "  %s\n", summary)
		}
		fmt.Fprintf(&b, "  %s\n", item.URL)
	}
	return b.String()
}

func truncate(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit])) + "..."
}

func buildItemsJSON(items []domain.NormalizedItem) ([]byte, error) {
	type entry struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Source  string `json:"source"`
		Summary string `json:"summary"`
	}

	payload := make([]entry, 0, len(items))
	for _, item := range items {
		payload = append(payload, entry{
			Title:   item.Title,
			URL:     item.URL,
			Source:  item.SourceName,
			Summary: item.Summary,
		})
	}

	return json.Marshal(payload)
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You summarize news articles into a short digest."
	}
	return prompt
}
