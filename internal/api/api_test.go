package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lifekit/routines/internal/engine"
	"github.com/lifekit/routines/internal/models"
	"github.com/lifekit/routines/internal/testutil"
)

var fixedNow = time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)

func newEnv() *testutil.TestEnv {
	return testutil.NewTestEnv(engine.WithClock(func() time.Time { return fixedNow }))
}

func serve(env *testutil.TestEnv, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	env.Server.Handler().ServeHTTP(rr, req)
	return rr
}

func createRoutineBody(kind models.TriggerKind, action models.ActionKind) models.CreateRoutineRequest {
	threshold := 50.0
	req := models.CreateRoutineRequest{
		OwnerID:     "owner-1",
		Name:        "test routine",
		TriggerKind: kind,
		ActionKind:  action,
	}
	switch kind {
	case models.TriggerHealthScoreDrop:
		req.TriggerConditions.Threshold = &threshold
	case models.TriggerEmailReceived:
		req.TriggerConditions.Sender = "alerts@example.com"
	}
	switch action {
	case models.ActionCreateTask:
		req.ActionConfig.Title = "follow up"
	case models.ActionSendNotification:
		req.ActionConfig.Message = "heads up"
	}
	return req
}

// createRoutine creates a routine through the HTTP surface and returns its ID.
func createRoutine(t *testing.T, env *testutil.TestEnv, body models.CreateRoutineRequest) string {
	t.Helper()
	req := testutil.CreateHTTPRequest(t, "POST", "/api/v1/routines", body)
	rr := serve(env, req)
	testutil.AssertHTTPStatus(t, http.StatusCreated, rr.Code, "create routine")
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	result, ok := resp["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("create response missing result: %v", resp)
	}
	id, _ := result["id"].(string)
	if id == "" {
		t.Fatal("created routine has no id")
	}
	return id
}

func TestHealthEndpoint(t *testing.T) {
	env := newEnv()
	rr := serve(env, testutil.CreateHTTPRequest(t, "GET", "/api/v1/health", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "health check")
	testutil.AssertJSONResponse(t, rr, "ok")
}

func TestCreateRoutine(t *testing.T) {
	env := newEnv()
	id := createRoutine(t, env, createRoutineBody(models.TriggerTaskOverdue, models.ActionSendNotification))

	rr := serve(env, testutil.CreateHTTPRequest(t, "GET", "/api/v1/routines/"+id, nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "get routine")
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	result := resp["result"].(map[string]interface{})
	if result["is_active"] != true {
		t.Error("routine should default to active")
	}
	if result["owner_id"] != "owner-1" {
		t.Errorf("unexpected owner_id: %v", result["owner_id"])
	}
}

func TestCreateRoutineValidation(t *testing.T) {
	env := newEnv()

	body := createRoutineBody(models.TriggerTaskOverdue, models.ActionSendNotification)
	body.OwnerID = ""
	rr := serve(env, testutil.CreateHTTPRequest(t, "POST", "/api/v1/routines", body))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "missing owner")
	testutil.AssertJSONResponse(t, rr, "error")

	// Config inconsistent with the action kind
	body = createRoutineBody(models.TriggerTaskOverdue, models.ActionSendNotification)
	body.ActionConfig.Message = ""
	rr = serve(env, testutil.CreateHTTPRequest(t, "POST", "/api/v1/routines", body))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "missing message")
}

func TestCreateRoutineInvalidJSON(t *testing.T) {
	env := newEnv()
	req, err := http.NewRequest("POST", "/api/v1/routines", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	rr := serve(env, req)
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid JSON")
}

func TestListRoutines(t *testing.T) {
	env := newEnv()
	createRoutine(t, env, createRoutineBody(models.TriggerTaskOverdue, models.ActionSendNotification))
	other := createRoutineBody(models.TriggerEmailReceived, models.ActionCreateTask)
	other.OwnerID = "owner-2"
	createRoutine(t, env, other)

	rr := serve(env, testutil.CreateHTTPRequest(t, "GET", "/api/v1/routines?owner_id=owner-1", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "list routines")
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	result := resp["result"].([]interface{})
	if len(result) != 1 {
		t.Errorf("expected 1 routine for owner-1, got %d", len(result))
	}
}

func TestListRoutinesRequiresOwner(t *testing.T) {
	env := newEnv()
	rr := serve(env, testutil.CreateHTTPRequest(t, "GET", "/api/v1/routines", nil))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "missing owner_id")
}

func TestListRoutinesEmptyOwnerReturnsEmptyList(t *testing.T) {
	env := newEnv()
	rr := serve(env, testutil.CreateHTTPRequest(t, "GET", "/api/v1/routines?owner_id=nobody", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "list empty")
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	result, ok := resp["result"].([]interface{})
	if !ok {
		t.Fatalf("expected JSON array result, got %T", resp["result"])
	}
	if len(result) != 0 {
		t.Errorf("expected empty list, got %d entries", len(result))
	}
}

func TestGetRoutineNotFound(t *testing.T) {
	env := newEnv()
	rr := serve(env, testutil.CreateHTTPRequest(t, "GET", "/api/v1/routines/nope", nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "get missing")
	testutil.AssertJSONResponse(t, rr, "error")
}

func TestUpdateRoutine(t *testing.T) {
	env := newEnv()
	id := createRoutine(t, env, createRoutineBody(models.TriggerTaskOverdue, models.ActionSendNotification))

	inactive := false
	name := "renamed"
	rr := serve(env, testutil.CreateHTTPRequest(t, "PATCH", "/api/v1/routines/"+id, models.RoutineUpdate{
		Name:     &name,
		IsActive: &inactive,
	}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "update routine")
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	result := resp["result"].(map[string]interface{})
	if result["name"] != "renamed" {
		t.Errorf("name not updated: %v", result["name"])
	}
	if result["is_active"] != false {
		t.Error("is_active not updated")
	}
}

func TestUpdateRoutineRevalidates(t *testing.T) {
	env := newEnv()
	id := createRoutine(t, env, createRoutineBody(models.TriggerHealthScoreDrop, models.ActionSendNotification))

	// Switching the trigger kind without matching conditions must be rejected
	kind := models.TriggerEmailReceived
	rr := serve(env, testutil.CreateHTTPRequest(t, "PATCH", "/api/v1/routines/"+id, models.RoutineUpdate{
		TriggerKind: &kind,
	}))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid update")
	testutil.AssertJSONResponse(t, rr, "error")
}

func TestUpdateRoutineNotFound(t *testing.T) {
	env := newEnv()
	name := "renamed"
	rr := serve(env, testutil.CreateHTTPRequest(t, "PATCH", "/api/v1/routines/nope", models.RoutineUpdate{Name: &name}))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "update missing")
}

func TestDeleteRoutine(t *testing.T) {
	env := newEnv()
	id := createRoutine(t, env, createRoutineBody(models.TriggerTaskOverdue, models.ActionSendNotification))

	rr := serve(env, testutil.CreateHTTPRequest(t, "DELETE", "/api/v1/routines/"+id, nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "delete routine")

	rr = serve(env, testutil.CreateHTTPRequest(t, "GET", "/api/v1/routines/"+id, nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "get after delete")

	rr = serve(env, testutil.CreateHTTPRequest(t, "DELETE", "/api/v1/routines/"+id, nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "delete again")
}

func TestTriggerRoutineFires(t *testing.T) {
	env := newEnv()
	id := createRoutine(t, env, createRoutineBody(models.TriggerHealthScoreDrop, models.ActionSendNotification))

	score := 42.0
	rr := serve(env, testutil.CreateHTTPRequest(t, "POST", "/api/v1/routines/"+id+"/trigger", models.TriggerRoutineRequest{
		Payload: models.EventPayload{HealthScore: &score},
	}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "trigger routine")
	resp := testutil.AssertJSONResponse(t, rr, "evaluated")
	result := resp["result"].(map[string]interface{})
	if result["outcome"] != string(models.OutcomeDispatched) {
		t.Errorf("expected dispatched outcome, got %v", result["outcome"])
	}
	if env.Notify.SentCount() != 1 {
		t.Errorf("expected 1 notification, got %d", env.Notify.SentCount())
	}

	// The fire timestamp is visible on a subsequent read
	rr = serve(env, testutil.CreateHTTPRequest(t, "GET", "/api/v1/routines/"+id, nil))
	getResp := testutil.AssertJSONResponse(t, rr, "ok")
	routine := getResp["result"].(map[string]interface{})
	if routine["last_fired_at"] == nil {
		t.Error("last_fired_at should be set after a successful dispatch")
	}
}

func TestTriggerRoutineConditionNotMet(t *testing.T) {
	env := newEnv()
	id := createRoutine(t, env, createRoutineBody(models.TriggerHealthScoreDrop, models.ActionSendNotification))

	score := 80.0
	rr := serve(env, testutil.CreateHTTPRequest(t, "POST", "/api/v1/routines/"+id+"/trigger", models.TriggerRoutineRequest{
		Payload: models.EventPayload{HealthScore: &score},
	}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "trigger routine")
	resp := testutil.AssertJSONResponse(t, rr, "evaluated")
	result := resp["result"].(map[string]interface{})
	if result["outcome"] != string(models.OutcomeNotFired) {
		t.Errorf("expected not_fired outcome, got %v", result["outcome"])
	}
	if env.Notify.SentCount() != 0 {
		t.Errorf("expected no notifications, got %d", env.Notify.SentCount())
	}
}

func TestTriggerRoutineEmptyBody(t *testing.T) {
	env := newEnv()
	id := createRoutine(t, env, createRoutineBody(models.TriggerTaskOverdue, models.ActionSendNotification))

	// No body at all: evaluated against an empty payload
	rr := serve(env, testutil.CreateHTTPRequest(t, "POST", "/api/v1/routines/"+id+"/trigger", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "trigger with empty body")
	resp := testutil.AssertJSONResponse(t, rr, "evaluated")
	result := resp["result"].(map[string]interface{})
	if result["outcome"] != string(models.OutcomeNotFired) {
		t.Errorf("expected not_fired outcome, got %v", result["outcome"])
	}
}

func TestTriggerRoutineNotFound(t *testing.T) {
	env := newEnv()
	rr := serve(env, testutil.CreateHTTPRequest(t, "POST", "/api/v1/routines/nope/trigger", nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "trigger missing")
}

func TestCheckRoutines(t *testing.T) {
	env := newEnv()
	createRoutine(t, env, createRoutineBody(models.TriggerTaskOverdue, models.ActionSendNotification))
	createRoutine(t, env, createRoutineBody(models.TriggerTaskOverdue, models.ActionCreateTask))
	// Different kind, must not be evaluated
	createRoutine(t, env, createRoutineBody(models.TriggerEmailReceived, models.ActionSendNotification))

	rr := serve(env, testutil.CreateHTTPRequest(t, "POST", "/api/v1/routines/check", models.CheckRoutinesRequest{
		OwnerID:     "owner-1",
		TriggerKind: models.TriggerTaskOverdue,
		Payload:     models.EventPayload{IsOverdue: true, TaskID: "task-9"},
	}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "check routines")
	resp := testutil.AssertJSONResponse(t, rr, "evaluated")
	results := resp["result"].([]interface{})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, entry := range results {
		r := entry.(map[string]interface{})
		if r["outcome"] != string(models.OutcomeDispatched) {
			t.Errorf("expected dispatched outcome, got %v", r["outcome"])
		}
	}
	if env.Notify.SentCount() != 1 || env.Tasks.CreatedCount() != 1 {
		t.Errorf("expected one notification and one task, got %d/%d", env.Notify.SentCount(), env.Tasks.CreatedCount())
	}
}

func TestCheckRoutinesValidation(t *testing.T) {
	env := newEnv()

	rr := serve(env, testutil.CreateHTTPRequest(t, "POST", "/api/v1/routines/check", models.CheckRoutinesRequest{
		TriggerKind: models.TriggerTaskOverdue,
	}))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "missing owner_id")

	rr = serve(env, testutil.CreateHTTPRequest(t, "POST", "/api/v1/routines/check", models.CheckRoutinesRequest{
		OwnerID:     "owner-1",
		TriggerKind: models.TriggerKind("bogus"),
	}))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid trigger kind")
}
