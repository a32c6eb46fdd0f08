// Package dispatch maps a fired routine's action onto a collaborator call.
//
// Every collaborator failure, timeout or panic is converted into a failed
// Outcome value; nothing escapes the dispatcher's boundary. Retry policy
// belongs to the engine, which decides based on the returned Outcome.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lifekit/routines/internal/calendar"
	"github.com/lifekit/routines/internal/models"
	"github.com/lifekit/routines/internal/notify"
	"github.com/lifekit/routines/internal/tasks"
)

// DefaultDispatchTimeout bounds a single collaborator call.
const DefaultDispatchTimeout = 10 * time.Second

// Outcome reports the result of one dispatch attempt.
type Outcome struct {
	Succeeded bool
	Reason    string // failure reason, empty on success
}

// succeeded is the shared success outcome.
var succeeded = Outcome{Succeeded: true}

// failed builds a failure outcome with the given reason.
func failed(format string, args ...any) Outcome {
	return Outcome{Succeeded: false, Reason: fmt.Sprintf(format, args...)}
}

// CustomFunc is the hook invoked for custom actions.
type CustomFunc func(ctx context.Context, ownerID string, config models.ActionConfig, payload models.EventPayload) error

// Opts holds dispatcher configuration.
type Opts struct {
	Tasks    tasks.Service
	Notify   notify.Service
	Calendar calendar.Service
	Custom   CustomFunc
	Timeout  time.Duration
}

// Option configures dispatcher construction.
type Option func(*Opts)

// WithTaskService sets the task collaborator.
func WithTaskService(s tasks.Service) Option {
	return func(o *Opts) { o.Tasks = s }
}

// WithNotificationService sets the notification collaborator.
func WithNotificationService(s notify.Service) Option {
	return func(o *Opts) { o.Notify = s }
}

// WithCalendarService sets the optional calendar collaborator.
func WithCalendarService(s calendar.Service) Option {
	return func(o *Opts) { o.Calendar = s }
}

// WithCustomFunc sets the hook invoked for custom actions.
func WithCustomFunc(f CustomFunc) Option {
	return func(o *Opts) { o.Custom = f }
}

// WithTimeout overrides the per-dispatch collaborator timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Dispatcher routes fired actions to collaborator services.
type Dispatcher struct {
	tasks    tasks.Service
	notify   notify.Service
	calendar calendar.Service
	custom   CustomFunc
	timeout  time.Duration
}

// NewDispatcher creates a dispatcher from the provided options.
func NewDispatcher(opts ...Option) *Dispatcher {
	cfg := Opts{Timeout: DefaultDispatchTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Dispatcher{
		tasks:    cfg.Tasks,
		notify:   cfg.Notify,
		calendar: cfg.Calendar,
		custom:   cfg.Custom,
		timeout:  cfg.Timeout,
	}
}

// Dispatch performs the side effect for the given action kind. It never
// returns an error and never panics; collaborator problems become a failed
// Outcome so one routine's outage cannot abort a sweep.
func (d *Dispatcher) Dispatch(ctx context.Context, kind models.ActionKind, config models.ActionConfig, ownerID string, payload models.EventPayload) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Dispatcher.Dispatch: collaborator panicked", "kind", kind, "owner", ownerID, "panic", r)
			outcome = failed("collaborator panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	switch kind {
	case models.ActionCreateTask:
		return d.dispatchCreateTask(ctx, config, ownerID)
	case models.ActionSendNotification:
		return d.dispatchSendNotification(ctx, config, ownerID)
	case models.ActionScheduleEvent:
		return d.dispatchScheduleEvent(ctx, config, ownerID)
	case models.ActionCustom:
		return d.dispatchCustom(ctx, config, ownerID, payload)
	default:
		// Unknown kinds are rejected at rule creation; reaching this is a bug.
		slog.Error("Dispatcher.Dispatch: unknown action kind", "kind", kind, "owner", ownerID)
		return failed("unknown action kind %q", kind)
	}
}

func (d *Dispatcher) dispatchCreateTask(ctx context.Context, config models.ActionConfig, ownerID string) Outcome {
	if d.tasks == nil {
		return failed("task collaborator not configured")
	}
	req := tasks.CreateTaskRequest{
		OwnerID:     ownerID,
		Title:       config.Title,
		Description: config.Description,
		DueAt:       config.DueAt,
	}
	if err := d.tasks.CreateTask(ctx, req); err != nil {
		slog.Error("Dispatcher.dispatchCreateTask failed", "error", err, "owner", ownerID)
		return failed("create task: %v", err)
	}
	slog.Debug("Dispatcher.dispatchCreateTask succeeded", "owner", ownerID, "title", config.Title)
	return succeeded
}

func (d *Dispatcher) dispatchSendNotification(ctx context.Context, config models.ActionConfig, ownerID string) Outcome {
	if d.notify == nil {
		return failed("notification collaborator not configured")
	}
	n := notify.Notification{
		OwnerID: ownerID,
		Title:   config.Title,
		Message: config.Message,
	}
	if err := d.notify.SendNotification(ctx, n); err != nil {
		slog.Error("Dispatcher.dispatchSendNotification failed", "error", err, "owner", ownerID)
		return failed("send notification: %v", err)
	}
	slog.Debug("Dispatcher.dispatchSendNotification succeeded", "owner", ownerID)
	return succeeded
}

func (d *Dispatcher) dispatchScheduleEvent(ctx context.Context, config models.ActionConfig, ownerID string) Outcome {
	if d.calendar == nil {
		// The calendar collaborator is optional; log and treat as delivered.
		slog.Info("Dispatcher.dispatchScheduleEvent: no calendar collaborator wired, skipping", "owner", ownerID, "title", config.Title)
		return succeeded
	}
	e := calendar.Event{
		OwnerID:         ownerID,
		Title:           config.Title,
		Description:     config.Description,
		StartAt:         config.StartAt,
		DurationMinutes: config.DurationMinutes,
		Location:        config.Location,
	}
	if err := d.calendar.ScheduleEvent(ctx, e); err != nil {
		slog.Error("Dispatcher.dispatchScheduleEvent failed", "error", err, "owner", ownerID)
		return failed("schedule event: %v", err)
	}
	slog.Debug("Dispatcher.dispatchScheduleEvent succeeded", "owner", ownerID, "title", config.Title)
	return succeeded
}

func (d *Dispatcher) dispatchCustom(ctx context.Context, config models.ActionConfig, ownerID string, payload models.EventPayload) Outcome {
	if d.custom == nil {
		slog.Info("Dispatcher.dispatchCustom: no custom hook configured, skipping", "owner", ownerID)
		return succeeded
	}
	if err := d.custom(ctx, ownerID, config, payload); err != nil {
		slog.Error("Dispatcher.dispatchCustom failed", "error", err, "owner", ownerID)
		return failed("custom action: %v", err)
	}
	slog.Debug("Dispatcher.dispatchCustom succeeded", "owner", ownerID)
	return succeeded
}
