package dispatch

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lifekit/routines/internal/calendar"
	"github.com/lifekit/routines/internal/models"
	"github.com/lifekit/routines/internal/notify"
	"github.com/lifekit/routines/internal/tasks"
)

func TestDispatchCreateTask(t *testing.T) {
	taskSvc := tasks.NewMockService()
	d := NewDispatcher(WithTaskService(taskSvc))

	due := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	config := models.ActionConfig{Title: "Follow up", Description: "Call back", DueAt: &due}
	outcome := d.Dispatch(context.Background(), models.ActionCreateTask, config, "user-1", models.EventPayload{})
	if !outcome.Succeeded {
		t.Fatalf("expected success, got failure: %s", outcome.Reason)
	}
	if taskSvc.CreatedCount() != 1 {
		t.Fatalf("expected 1 task, got %d", taskSvc.CreatedCount())
	}
	created := taskSvc.Created[0]
	if created.OwnerID != "user-1" || created.Title != "Follow up" || created.DueAt == nil {
		t.Errorf("task fields not mapped from action config: %+v", created)
	}
}

func TestDispatchCreateTaskWithoutCollaborator(t *testing.T) {
	d := NewDispatcher()
	outcome := d.Dispatch(context.Background(), models.ActionCreateTask, models.ActionConfig{Title: "x"}, "user-1", models.EventPayload{})
	if outcome.Succeeded {
		t.Fatal("expected failure when task collaborator is not configured")
	}
	if outcome.Reason == "" {
		t.Error("failure outcome should carry a reason")
	}
}

func TestDispatchSendNotification(t *testing.T) {
	notifySvc := notify.NewMockService()
	d := NewDispatcher(WithNotificationService(notifySvc))

	config := models.ActionConfig{Title: "Overdue", Message: "A task is overdue"}
	outcome := d.Dispatch(context.Background(), models.ActionSendNotification, config, "user-1", models.EventPayload{})
	if !outcome.Succeeded {
		t.Fatalf("expected success, got failure: %s", outcome.Reason)
	}
	if notifySvc.SentCount() != 1 {
		t.Fatalf("expected 1 notification, got %d", notifySvc.SentCount())
	}
	if notifySvc.Sent[0].Message != "A task is overdue" {
		t.Errorf("notification message not mapped: %+v", notifySvc.Sent[0])
	}
}

func TestDispatchCollaboratorErrorBecomesFailedOutcome(t *testing.T) {
	notifySvc := notify.NewMockService()
	notifySvc.Err = fmt.Errorf("service unavailable")
	d := NewDispatcher(WithNotificationService(notifySvc))

	outcome := d.Dispatch(context.Background(), models.ActionSendNotification, models.ActionConfig{Message: "x"}, "user-1", models.EventPayload{})
	if outcome.Succeeded {
		t.Fatal("expected failure outcome")
	}
	if outcome.Reason == "" {
		t.Error("failure outcome should carry the collaborator's reason")
	}
}

func TestDispatchScheduleEvent(t *testing.T) {
	calSvc := calendar.NewMockService()
	d := NewDispatcher(WithCalendarService(calSvc))

	outcome := d.Dispatch(context.Background(), models.ActionScheduleEvent, models.ActionConfig{Title: "Gym"}, "user-1", models.EventPayload{})
	if !outcome.Succeeded {
		t.Fatalf("expected success, got failure: %s", outcome.Reason)
	}
	if calSvc.ScheduledCount() != 1 {
		t.Fatalf("expected 1 event, got %d", calSvc.ScheduledCount())
	}
}

func TestDispatchScheduleEventWithoutCollaboratorIsStubbed(t *testing.T) {
	// The calendar collaborator is optional; missing wiring is a logged no-op.
	d := NewDispatcher()
	outcome := d.Dispatch(context.Background(), models.ActionScheduleEvent, models.ActionConfig{Title: "Gym"}, "user-1", models.EventPayload{})
	if !outcome.Succeeded {
		t.Fatalf("expected stubbed success, got failure: %s", outcome.Reason)
	}
}

func TestDispatchCustomDefaultsToNoop(t *testing.T) {
	d := NewDispatcher()
	outcome := d.Dispatch(context.Background(), models.ActionCustom, models.ActionConfig{}, "user-1", models.EventPayload{})
	if !outcome.Succeeded {
		t.Fatalf("expected no-op success, got failure: %s", outcome.Reason)
	}
}

func TestDispatchCustomHook(t *testing.T) {
	var gotOwner string
	hook := func(_ context.Context, ownerID string, _ models.ActionConfig, _ models.EventPayload) error {
		gotOwner = ownerID
		return nil
	}
	d := NewDispatcher(WithCustomFunc(hook))

	outcome := d.Dispatch(context.Background(), models.ActionCustom, models.ActionConfig{}, "user-1", models.EventPayload{})
	if !outcome.Succeeded {
		t.Fatalf("expected success, got failure: %s", outcome.Reason)
	}
	if gotOwner != "user-1" {
		t.Errorf("hook not invoked with owner, got %q", gotOwner)
	}
}

func TestDispatchTimeoutBecomesFailedOutcome(t *testing.T) {
	// A collaborator that never returns on its own; the per-dispatch
	// deadline must cut it off like any other failure.
	hook := func(ctx context.Context, _ string, _ models.ActionConfig, _ models.EventPayload) error {
		<-ctx.Done()
		return ctx.Err()
	}
	d := NewDispatcher(WithCustomFunc(hook), WithTimeout(50*time.Millisecond))

	outcome := d.Dispatch(context.Background(), models.ActionCustom, models.ActionConfig{}, "user-1", models.EventPayload{})
	if outcome.Succeeded {
		t.Fatal("a timed-out dispatch must fail")
	}
	if !strings.Contains(outcome.Reason, "deadline exceeded") {
		t.Errorf("outcome reason should name the deadline, got %q", outcome.Reason)
	}
}

func TestDispatchRecoversFromPanickingCollaborator(t *testing.T) {
	hook := func(context.Context, string, models.ActionConfig, models.EventPayload) error {
		panic("collaborator bug")
	}
	d := NewDispatcher(WithCustomFunc(hook))

	outcome := d.Dispatch(context.Background(), models.ActionCustom, models.ActionConfig{}, "user-1", models.EventPayload{})
	if outcome.Succeeded {
		t.Fatal("panic must become a failed outcome")
	}
	if outcome.Reason == "" {
		t.Error("panic outcome should carry a reason")
	}
}

func TestDispatchUnknownActionKind(t *testing.T) {
	d := NewDispatcher()
	outcome := d.Dispatch(context.Background(), "launch_rocket", models.ActionConfig{}, "user-1", models.EventPayload{})
	if outcome.Succeeded {
		t.Fatal("unknown action kinds must fail")
	}
}
