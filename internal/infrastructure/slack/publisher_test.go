package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDigestPostsWebhookMessage(t *testing.T) {
	t.Parallel()

	var gotPayload map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	p := NewPublisher(server.URL)
	require.NoError(t, p.PublishDigest(context.Background(), "Today in AI: two stories."))
	assert.Equal(t, "Today in AI: two stories.", gotPayload["text"])
}

func TestPublishDigestServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_payload", http.StatusBadRequest)
	}))
	defer server.Close()

	p := NewPublisher(server.URL)
	err := p.PublishDigest(context.Background(), "digest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slack error")
}

func TestPublishDigestMisconfigured(t *testing.T) {
	t.Parallel()

	p := NewPublisher("")
	require.Error(t, p.PublishDigest(context.Background(), "digest"))
}

func TestPublishDigestSkipsEmpty(t *testing.T) {
	t.Parallel()

	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	p := NewPublisher(server.URL)
	require.NoError(t, p.PublishDigest(context.Background(), ""))
	assert.False(t, called, "empty digests are not delivered")
}
