package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"webfolio/api/models"
)

// Transport delivers a batch of events to the collection endpoint.
type Transport interface {
	Send(ctx context.Context, events []models.Event) error
}

// HTTPTransport posts event batches as JSON. Requests use a short timeout
// so an in-flight flush cannot hold up teardown.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
}

// NewHTTPTransport creates a transport posting to the given events
// endpoint, e.g. "https://example.com/api/track/events".
func NewHTTPTransport(endpoint string) *HTTPTransport {
	return &HTTPTransport{
		endpoint: endpoint,
		client:   &http.Client{Timeout: sendTimeout},
	}
}

// Send posts {"events": [...]} and discards the response body.
func (t *HTTPTransport) Send(ctx context.Context, events []models.Event) error {
	body, err := json.Marshal(models.EventBatch{Events: events})
	if err != nil {
		return fmt.Errorf("marshal event batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("post event batch: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("collection endpoint returned %d", resp.StatusCode)
	}
	return nil
}
