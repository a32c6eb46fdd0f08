// Package tasks wraps the task service collaborator.
//
// The task service owns task CRUD; routines only ever create tasks through it.
package tasks

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

// DefaultRequestTimeout bounds a single task-service call.
const DefaultRequestTimeout = 10 * time.Second

// CreateTaskRequest is the payload sent to the task service.
type CreateTaskRequest struct {
	OwnerID     string     `json:"owner_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
}

// Service defines the task collaborator boundary.
type Service interface {
	CreateTask(ctx context.Context, req CreateTaskRequest) error
}

// HTTPClient calls the task service over HTTP.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a task service client for the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultRequestTimeout},
	}
}

// CreateTask posts a new task to the task service.
func (c *HTTPClient) CreateTask(ctx context.Context, req CreateTaskRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal task request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tasks", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build task request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		slog.Error("tasks.HTTPClient CreateTask request failed", "error", err, "owner", req.OwnerID)
		return fmt.Errorf("task service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("tasks.HTTPClient CreateTask unexpected status", "status", resp.StatusCode, "owner", req.OwnerID)
		return fmt.Errorf("task service returned status %d", resp.StatusCode)
	}
	slog.Debug("tasks.HTTPClient CreateTask succeeded", "owner", req.OwnerID, "title", req.Title)
	return nil
}

// MockService records task creations for tests.
type MockService struct {
	mu      sync.Mutex
	Created []CreateTaskRequest
	Err     error // returned from CreateTask when set
}

// NewMockService creates a mock task service.
func NewMockService() *MockService {
	return &MockService{}
}

// CreateTask records the request and returns the configured error, if any.
func (m *MockService) CreateTask(_ context.Context, req CreateTaskRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Created = append(m.Created, req)
	return nil
}

// CreatedCount returns how many tasks were created.
func (m *MockService) CreatedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Created)
}
