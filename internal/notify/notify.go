// Package notify wraps the notification service collaborator.
//
// Two delivery paths are provided: an HTTP webhook client that posts to the
// notifications service, and a Twilio SMS client for direct delivery.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultRequestTimeout bounds a single notification delivery call.
const DefaultRequestTimeout = 10 * time.Second

// Notification is the payload handed to the notification collaborator.
type Notification struct {
	OwnerID string `json:"owner_id"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}

// Service defines the notification collaborator boundary.
type Service interface {
	SendNotification(ctx context.Context, n Notification) error
}

// WebhookClient posts notifications to the notifications service over HTTP.
type WebhookClient struct {
	url    string
	client *http.Client
}

// NewWebhookClient creates a webhook notification client for the given URL.
func NewWebhookClient(url string) *WebhookClient {
	return &WebhookClient{
		url:    strings.TrimRight(url, "/"),
		client: &http.Client{Timeout: DefaultRequestTimeout},
	}
}

// SendNotification posts the notification payload to the configured endpoint.
func (c *WebhookClient) SendNotification(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		slog.Error("notify.WebhookClient SendNotification request failed", "error", err, "owner", n.OwnerID)
		return fmt.Errorf("notification service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("notify.WebhookClient SendNotification unexpected status", "status", resp.StatusCode, "owner", n.OwnerID)
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}
	slog.Debug("notify.WebhookClient SendNotification succeeded", "owner", n.OwnerID)
	return nil
}

// MockService records notifications for tests.
type MockService struct {
	mu   sync.Mutex
	Sent []Notification
	Err  error // returned from SendNotification when set
}

// NewMockService creates a mock notification service.
func NewMockService() *MockService {
	return &MockService{}
}

// SendNotification records the notification and returns the configured error, if any.
func (m *MockService) SendNotification(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, n)
	return nil
}

// SentCount returns how many notifications were sent.
func (m *MockService) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
