// Package calendar wraps the optional calendar service collaborator.
package calendar

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

// DefaultRequestTimeout bounds a single calendar-service call.
const DefaultRequestTimeout = 10 * time.Second

// Event is the payload sent to the calendar service.
type Event struct {
	OwnerID         string     `json:"owner_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	StartAt         *time.Time `json:"start_at,omitempty"`
	DurationMinutes int        `json:"duration_minutes,omitempty"`
	Location        string     `json:"location,omitempty"`
}

// Service defines the calendar collaborator boundary.
type Service interface {
	ScheduleEvent(ctx context.Context, e Event) error
}

// HTTPClient calls the calendar service over HTTP.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a calendar service client for the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultRequestTimeout},
	}
}

// ScheduleEvent posts a new event to the calendar service.
func (c *HTTPClient) ScheduleEvent(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build event request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		slog.Error("calendar.HTTPClient ScheduleEvent request failed", "error", err, "owner", e.OwnerID)
		return fmt.Errorf("calendar service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("calendar.HTTPClient ScheduleEvent unexpected status", "status", resp.StatusCode, "owner", e.OwnerID)
		return fmt.Errorf("calendar service returned status %d", resp.StatusCode)
	}
	slog.Debug("calendar.HTTPClient ScheduleEvent succeeded", "owner", e.OwnerID, "title", e.Title)
	return nil
}

// MockService records scheduled events for tests.
type MockService struct {
	mu        sync.Mutex
	Scheduled []Event
	Err       error // returned from ScheduleEvent when set
}

// NewMockService creates a mock calendar service.
func NewMockService() *MockService {
	return &MockService{}
}

// ScheduleEvent records the event and returns the configured error, if any.
func (m *MockService) ScheduleEvent(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Scheduled = append(m.Scheduled, e)
	return nil
}

// ScheduledCount returns how many events were scheduled.
func (m *MockService) ScheduledCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Scheduled)
}
