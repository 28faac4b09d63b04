package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"brieflybot/internal/ports"
)

// Publisher posts digests to a Slack incoming webhook.
type Publisher struct {
	webhookURL string
	client     *http.Client
}

var _ ports.Publisher = (*Publisher)(nil)

// NewPublisher registers the webhook URL.
func NewPublisher(webhookURL string) *Publisher {
	return &Publisher{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

// PublishDigest posts the digest text as a webhook message.
func (p *Publisher) PublishDigest(ctx context.Context, digest string) error {
	if p.webhookURL == "" || p.client == nil {
		return fmt.Errorf("slack publisher misconfigured")
	}
	if digest == "" {
		return nil
	}

	body, err := json.Marshal(map[string]string{"text": digest})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack error: %s", resp.Status)
	}

	return nil
}
