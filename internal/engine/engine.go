// Package engine implements rule evaluation for routines.
//
// The Engine orchestrates the condition evaluator and the action dispatcher
// against the routine store. It owns the routine CRUD operations, the two
// reactive entry points, the scheduled sweep, and the idempotency bookkeeping:
// last_fired_at is written only after a successful dispatch, so a failed
// dispatch is naturally retried on the next evaluation. The contract is
// at-least-once; concurrent evaluations of the same routine may double-fire.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lifekit/routines/internal/dispatch"
	"github.com/lifekit/routines/internal/models"
	"github.com/lifekit/routines/internal/store"
)

// ErrRoutineNotFound mirrors the store sentinel for callers that only import engine.
var ErrRoutineNotFound = store.ErrRoutineNotFound

// Opts holds engine configuration.
type Opts struct {
	Now func() time.Time
}

// Option configures engine construction.
type Option func(*Opts)

// WithClock overrides the wall clock, letting tests drive evaluation time.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) { o.Now = now }
}

// Engine evaluates routines and dispatches their actions.
type Engine struct {
	st         store.Store
	dispatcher *dispatch.Dispatcher
	now        func() time.Time
}

// NewEngine creates an engine over the given store and dispatcher.
func NewEngine(st store.Store, dispatcher *dispatch.Dispatcher, opts ...Option) *Engine {
	cfg := Opts{Now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{st: st, dispatcher: dispatcher, now: cfg.Now}
}

// CreateRoutine validates and persists a new routine.
func (e *Engine) CreateRoutine(req models.CreateRoutineRequest) (*models.Routine, error) {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	r := models.Routine{
		ID:                uuid.NewString(),
		OwnerID:           req.OwnerID,
		Name:              req.Name,
		Description:       req.Description,
		TriggerKind:       req.TriggerKind,
		TriggerConditions: req.TriggerConditions,
		ActionKind:        req.ActionKind,
		ActionConfig:      req.ActionConfig,
		IsActive:          active,
	}
	if err := r.Validate(); err != nil {
		slog.Warn("Engine.CreateRoutine: validation failed", "error", err, "owner", req.OwnerID)
		return nil, err
	}
	if err := e.st.CreateRoutine(r); err != nil {
		return nil, fmt.Errorf("failed to create routine: %w", err)
	}
	created, err := e.st.GetRoutine(r.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load created routine: %w", err)
	}
	slog.Info("Engine.CreateRoutine: routine created", "routineID", created.ID, "owner", created.OwnerID, "trigger", created.TriggerKind, "action", created.ActionKind)
	return created, nil
}

// ListRoutines returns every routine owned by the given user.
func (e *Engine) ListRoutines(ownerID string) ([]models.Routine, error) {
	return e.st.ListRoutinesByOwner(ownerID)
}

// GetRoutine retrieves a routine by id.
func (e *Engine) GetRoutine(id string) (*models.Routine, error) {
	return e.st.GetRoutine(id)
}

// UpdateRoutine applies a partial update to a routine. The resulting record is
// re-validated so a kind change cannot leave a stale condition shape behind.
func (e *Engine) UpdateRoutine(id string, upd models.RoutineUpdate) (*models.Routine, error) {
	r, err := e.st.GetRoutine(id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		r.Name = *upd.Name
	}
	if upd.Description != nil {
		r.Description = *upd.Description
	}
	if upd.TriggerKind != nil {
		r.TriggerKind = *upd.TriggerKind
	}
	if upd.TriggerConditions != nil {
		r.TriggerConditions = *upd.TriggerConditions
	}
	if upd.ActionKind != nil {
		r.ActionKind = *upd.ActionKind
	}
	if upd.ActionConfig != nil {
		r.ActionConfig = *upd.ActionConfig
	}
	if upd.IsActive != nil {
		r.IsActive = *upd.IsActive
	}
	if err := r.Validate(); err != nil {
		slog.Warn("Engine.UpdateRoutine: validation failed", "error", err, "routineID", id)
		return nil, err
	}
	if err := e.st.UpdateRoutine(*r); err != nil {
		return nil, err
	}
	updated, err := e.st.GetRoutine(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load updated routine: %w", err)
	}
	slog.Info("Engine.UpdateRoutine: routine updated", "routineID", id)
	return updated, nil
}

// DeleteRoutine removes a routine by id.
func (e *Engine) DeleteRoutine(id string) error {
	if err := e.st.DeleteRoutine(id); err != nil {
		return err
	}
	slog.Info("Engine.DeleteRoutine: routine deleted", "routineID", id)
	return nil
}

// EvaluateOne is the reactive single-rule entry point. It returns
// ErrRoutineNotFound if the id is stale; every other outcome, including a
// failed dispatch, is reported in the result rather than as an error.
func (e *Engine) EvaluateOne(ctx context.Context, id string, payload models.EventPayload) (models.EvaluationResult, error) {
	r, err := e.st.GetRoutine(id)
	if err != nil {
		return models.EvaluationResult{}, err
	}
	return e.evaluate(ctx, *r, payload), nil
}

// CheckRoutinesForOwner is the bulk reactive entry point for producers that
// know the owner and trigger kind but not a specific routine id. Each routine
// is evaluated independently; one dispatch failure never stops the others.
func (e *Engine) CheckRoutinesForOwner(ctx context.Context, ownerID string, kind models.TriggerKind, payload models.EventPayload) ([]models.EvaluationResult, error) {
	routines, err := e.st.ListRoutinesByOwnerAndKind(ownerID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list routines for owner %s: %w", ownerID, err)
	}
	slog.Debug("Engine.CheckRoutinesForOwner: evaluating", "owner", ownerID, "kind", kind, "count", len(routines))
	results := make([]models.EvaluationResult, 0, len(routines))
	for _, r := range routines {
		results = append(results, e.evaluate(ctx, r, payload))
	}
	return results, nil
}

// SweepTimeBased evaluates every active time-based routine against the current
// wall-clock time with a synthetic empty payload. The scheduler drives this on
// each tick.
func (e *Engine) SweepTimeBased(ctx context.Context) ([]models.EvaluationResult, error) {
	routines, err := e.st.ListActiveRoutinesByKind(models.TriggerTimeBased)
	if err != nil {
		return nil, fmt.Errorf("failed to list time-based routines: %w", err)
	}
	results := make([]models.EvaluationResult, 0, len(routines))
	fired := 0
	for _, r := range routines {
		res := e.evaluate(ctx, r, models.EventPayload{})
		if res.Outcome == models.OutcomeDispatched {
			fired++
		}
		results = append(results, res)
	}
	slog.Debug("Engine.SweepTimeBased: sweep complete", "evaluated", len(routines), "fired", fired)
	return results, nil
}

// evaluate runs one routine through the full cycle:
// inactive check, condition evaluation, dispatch, last-fired bookkeeping.
func (e *Engine) evaluate(ctx context.Context, r models.Routine, payload models.EventPayload) models.EvaluationResult {
	if !r.IsActive {
		return models.EvaluationResult{RoutineID: r.ID, Outcome: models.OutcomeInactive}
	}

	now := e.now()
	if !EvaluateCondition(r.TriggerKind, r.TriggerConditions, payload, now) {
		return models.EvaluationResult{RoutineID: r.ID, Outcome: models.OutcomeNotFired}
	}

	outcome := e.dispatcher.Dispatch(ctx, r.ActionKind, r.ActionConfig, r.OwnerID, payload)
	if !outcome.Succeeded {
		// Leaving last_fired_at untouched makes the next evaluation retry.
		slog.Warn("Engine.evaluate: dispatch failed", "routineID", r.ID, "owner", r.OwnerID, "action", r.ActionKind, "reason", outcome.Reason)
		return models.EvaluationResult{RoutineID: r.ID, Outcome: models.OutcomeDispatchFailed, Reason: outcome.Reason}
	}

	if err := e.st.MarkRoutineFired(r.ID, now); err != nil {
		// The action already happened; a failed write only means the next
		// evaluation may fire again, which the at-least-once contract allows.
		slog.Error("Engine.evaluate: failed to record fire", "error", err, "routineID", r.ID)
	}
	slog.Info("Engine.evaluate: routine fired", "routineID", r.ID, "owner", r.OwnerID, "action", r.ActionKind)
	return models.EvaluationResult{RoutineID: r.ID, Outcome: models.OutcomeDispatched, FiredAt: &now}
}
