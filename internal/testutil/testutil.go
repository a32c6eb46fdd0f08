// Package testutil provides common test utilities and helpers for routines tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lifekit/routines/internal/api"
	"github.com/lifekit/routines/internal/calendar"
	"github.com/lifekit/routines/internal/dispatch"
	"github.com/lifekit/routines/internal/engine"
	"github.com/lifekit/routines/internal/notify"
	"github.com/lifekit/routines/internal/store"
	"github.com/lifekit/routines/internal/tasks"
)

// TestEnv bundles the in-memory components a test server is built from, so
// tests can reach the mocks behind the HTTP surface.
type TestEnv struct {
	Server   *api.Server
	Store    *store.InMemoryStore
	Engine   *engine.Engine
	Tasks    *tasks.MockService
	Notify   *notify.MockService
	Calendar *calendar.MockService
}

// NewTestEnv creates a test API server with in-memory dependencies.
// This centralizes the test wiring used across multiple test files.
func NewTestEnv(opts ...engine.Option) *TestEnv {
	st := store.NewInMemoryStore()
	taskSvc := tasks.NewMockService()
	notifySvc := notify.NewMockService()
	calSvc := calendar.NewMockService()
	d := dispatch.NewDispatcher(
		dispatch.WithTaskService(taskSvc),
		dispatch.WithNotificationService(notifySvc),
		dispatch.WithCalendarService(calSvc),
	)
	eng := engine.NewEngine(st, d, opts...)
	return &TestEnv{
		Server:   api.NewServer(eng),
		Store:    st,
		Engine:   eng,
		Tasks:    taskSvc,
		Notify:   notifySvc,
		Calendar: calSvc,
	}
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}
