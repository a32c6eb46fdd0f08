// Package models defines the core data structures for the routines engine.
//
// It includes the Routine rule record, the trigger/action payload shapes tied
// to each kind, event payloads delivered by producer services, and the API
// response envelopes shared across modules.
package models

import (
	"errors"
	"time"
)

// TriggerKind describes what condition a routine watches for.
type TriggerKind string

const (
	// TriggerHealthScoreDrop fires when a reported health score falls below a threshold.
	TriggerHealthScoreDrop TriggerKind = "health_score_drop"
	// TriggerTaskOverdue fires when a task is reported overdue.
	TriggerTaskOverdue TriggerKind = "task_overdue"
	// TriggerEmailReceived fires when an email from a specific sender arrives.
	TriggerEmailReceived TriggerKind = "email_received"
	// TriggerTimeBased fires when the current time matches the configured components.
	TriggerTimeBased TriggerKind = "time_based"
	// TriggerCustom always fires; semantics live entirely in the action.
	TriggerCustom TriggerKind = "custom"
)

// ActionKind describes what side effect a routine performs when it fires.
type ActionKind string

const (
	// ActionCreateTask creates a task via the task collaborator.
	ActionCreateTask ActionKind = "create_task"
	// ActionSendNotification sends a notification via the notification collaborator.
	ActionSendNotification ActionKind = "send_notification"
	// ActionScheduleEvent schedules an event via the calendar collaborator.
	ActionScheduleEvent ActionKind = "schedule_event"
	// ActionCustom invokes a host-provided hook; defaults to a logged no-op.
	ActionCustom ActionKind = "custom"
)

// Validation constants for routine fields
const (
	// MaxNameLength defines the maximum allowed length for a routine name
	MaxNameLength = 200
	// MaxDescriptionLength defines the maximum allowed length for a routine description
	MaxDescriptionLength = 2000
	// MaxTitleLength defines the maximum allowed length for action titles
	MaxTitleLength = 500
)

// Error variables for better error handling and testability
var (
	ErrEmptyOwner          = errors.New("owner_id cannot be empty")
	ErrEmptyName           = errors.New("name cannot be empty")
	ErrNameTooLong         = errors.New("name exceeds maximum length")
	ErrDescriptionTooLong  = errors.New("description exceeds maximum length")
	ErrInvalidTriggerKind  = errors.New("invalid trigger kind")
	ErrInvalidActionKind   = errors.New("invalid action kind")
	ErrMissingThreshold    = errors.New("threshold is required for health_score_drop triggers")
	ErrMissingSender       = errors.New("sender is required for email_received triggers")
	ErrEmptyTimeConditions = errors.New("time_based triggers require at least one of hour, minute, day_of_week")
	ErrInvalidHour         = errors.New("hour must be between 0 and 23")
	ErrInvalidMinute       = errors.New("minute must be between 0 and 59")
	ErrInvalidDayOfWeek    = errors.New("day_of_week must be between 0 (Sunday) and 6 (Saturday)")
	ErrMissingTitle        = errors.New("title is required for create_task actions")
	ErrTitleTooLong        = errors.New("title exceeds maximum length")
	ErrMissingMessage      = errors.New("message is required for send_notification actions")
)

// validationErrors enumerates every construction-time shape error, so API
// boundaries can map them to client errors rather than server errors.
var validationErrors = []error{
	ErrEmptyOwner, ErrEmptyName, ErrNameTooLong, ErrDescriptionTooLong,
	ErrInvalidTriggerKind, ErrInvalidActionKind, ErrMissingThreshold,
	ErrMissingSender, ErrEmptyTimeConditions, ErrInvalidHour, ErrInvalidMinute,
	ErrInvalidDayOfWeek, ErrMissingTitle, ErrTitleTooLong, ErrMissingMessage,
}

// IsValidationError reports whether err is a routine shape validation error.
func IsValidationError(err error) bool {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

// IsValidTriggerKind checks if the given trigger kind is supported.
func IsValidTriggerKind(k TriggerKind) bool {
	switch k {
	case TriggerHealthScoreDrop, TriggerTaskOverdue, TriggerEmailReceived, TriggerTimeBased, TriggerCustom:
		return true
	default:
		return false
	}
}

// IsValidActionKind checks if the given action kind is supported.
func IsValidActionKind(k ActionKind) bool {
	switch k {
	case ActionCreateTask, ActionSendNotification, ActionScheduleEvent, ActionCustom:
		return true
	default:
		return false
	}
}

// TriggerConditions holds the condition fields for every trigger kind. Which
// fields are meaningful is determined by the routine's TriggerKind; Validate
// enforces the per-kind shape at construction time so evaluation never sees a
// malformed condition.
type TriggerConditions struct {
	// Threshold applies to health_score_drop: fire when score < threshold.
	Threshold *float64 `json:"threshold,omitempty"`
	// Sender applies to email_received: exact match, no wildcards.
	Sender string `json:"sender,omitempty"`
	// Hour, Minute and DayOfWeek apply to time_based. Unset fields are
	// wildcards. A routine specifying only hour matches every minute within
	// that hour under per-minute sweeping; callers wanting a single daily
	// firing must set both hour and minute.
	Hour      *int `json:"hour,omitempty"`
	Minute    *int `json:"minute,omitempty"`
	DayOfWeek *int `json:"day_of_week,omitempty"` // 0 = Sunday, matching time.Weekday
}

// Validate checks the conditions against the declared trigger kind.
func (c *TriggerConditions) Validate(kind TriggerKind) error {
	switch kind {
	case TriggerHealthScoreDrop:
		if c.Threshold == nil {
			return ErrMissingThreshold
		}
	case TriggerEmailReceived:
		if c.Sender == "" {
			return ErrMissingSender
		}
	case TriggerTimeBased:
		if c.Hour == nil && c.Minute == nil && c.DayOfWeek == nil {
			return ErrEmptyTimeConditions
		}
		if c.Hour != nil && (*c.Hour < 0 || *c.Hour > 23) {
			return ErrInvalidHour
		}
		if c.Minute != nil && (*c.Minute < 0 || *c.Minute > 59) {
			return ErrInvalidMinute
		}
		if c.DayOfWeek != nil && (*c.DayOfWeek < 0 || *c.DayOfWeek > 6) {
			return ErrInvalidDayOfWeek
		}
	case TriggerTaskOverdue, TriggerCustom:
		// No condition fields required.
	default:
		return ErrInvalidTriggerKind
	}
	return nil
}

// ActionConfig holds the configuration fields for every action kind. As with
// TriggerConditions, the routine's ActionKind determines which fields apply.
type ActionConfig struct {
	// Title and Description apply to create_task and schedule_event.
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	// Message applies to send_notification.
	Message string `json:"message,omitempty"`
	// StartAt, DurationMinutes and Location apply to schedule_event.
	StartAt         *time.Time `json:"start_at,omitempty"`
	DurationMinutes int        `json:"duration_minutes,omitempty"`
	Location        string     `json:"location,omitempty"`
}

// Validate checks the config against the declared action kind.
func (c *ActionConfig) Validate(kind ActionKind) error {
	switch kind {
	case ActionCreateTask:
		if c.Title == "" {
			return ErrMissingTitle
		}
		if len(c.Title) > MaxTitleLength {
			return ErrTitleTooLong
		}
	case ActionSendNotification:
		if c.Message == "" {
			return ErrMissingMessage
		}
	case ActionScheduleEvent:
		if c.Title == "" {
			return ErrMissingTitle
		}
		if len(c.Title) > MaxTitleLength {
			return ErrTitleTooLong
		}
	case ActionCustom:
		// Custom actions carry whatever the hook understands.
	default:
		return ErrInvalidActionKind
	}
	return nil
}

// Routine represents a user-owned trigger/action rule.
type Routine struct {
	ID                string            `json:"id"`
	OwnerID           string            `json:"owner_id"`
	Name              string            `json:"name"`
	Description       string            `json:"description,omitempty"`
	TriggerKind       TriggerKind       `json:"trigger_kind"`
	TriggerConditions TriggerConditions `json:"trigger_conditions"`
	ActionKind        ActionKind        `json:"action_kind"`
	ActionConfig      ActionConfig      `json:"action_config"`
	IsActive          bool              `json:"is_active"`
	LastFiredAt       *time.Time        `json:"last_fired_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Validate performs comprehensive validation on a Routine structure.
func (r *Routine) Validate() error {
	if r.OwnerID == "" {
		return ErrEmptyOwner
	}
	if r.Name == "" {
		return ErrEmptyName
	}
	if len(r.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	if len(r.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if !IsValidTriggerKind(r.TriggerKind) {
		return ErrInvalidTriggerKind
	}
	if !IsValidActionKind(r.ActionKind) {
		return ErrInvalidActionKind
	}
	if err := r.TriggerConditions.Validate(r.TriggerKind); err != nil {
		return err
	}
	return r.ActionConfig.Validate(r.ActionKind)
}

// RoutineUpdate represents the payload for partially updating a routine.
// Nil fields are left unchanged. ID, owner and creation time are immutable.
type RoutineUpdate struct {
	Name              *string            `json:"name,omitempty"`
	Description       *string            `json:"description,omitempty"`
	TriggerKind       *TriggerKind       `json:"trigger_kind,omitempty"`
	TriggerConditions *TriggerConditions `json:"trigger_conditions,omitempty"`
	ActionKind        *ActionKind        `json:"action_kind,omitempty"`
	ActionConfig      *ActionConfig      `json:"action_config,omitempty"`
	IsActive          *bool              `json:"is_active,omitempty"`
}

// EventPayload carries the event data a producer service observed. Fields are
// sparse; each trigger kind reads only the fields it cares about and treats
// missing values as "condition not met" rather than errors.
type EventPayload struct {
	HealthScore *float64       `json:"health_score,omitempty"`
	IsOverdue   bool           `json:"is_overdue,omitempty"`
	Sender      string         `json:"sender,omitempty"`
	Subject     string         `json:"subject,omitempty"`
	TaskID      string         `json:"task_id,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// EvaluationOutcome represents the terminal state of one evaluation cycle.
type EvaluationOutcome string

const (
	// OutcomeNotFired indicates the condition did not hold.
	OutcomeNotFired EvaluationOutcome = "not_fired"
	// OutcomeInactive indicates the routine is deactivated and was skipped.
	OutcomeInactive EvaluationOutcome = "inactive"
	// OutcomeDispatched indicates the action was dispatched and recorded.
	OutcomeDispatched EvaluationOutcome = "dispatched"
	// OutcomeDispatchFailed indicates the condition held but the dispatch failed.
	OutcomeDispatchFailed EvaluationOutcome = "dispatch_failed"
)

// EvaluationResult reports the outcome of evaluating a single routine.
type EvaluationResult struct {
	RoutineID string            `json:"routine_id"`
	Outcome   EvaluationOutcome `json:"outcome"`
	Reason    string            `json:"reason,omitempty"`
	FiredAt   *time.Time        `json:"fired_at,omitempty"`
}
