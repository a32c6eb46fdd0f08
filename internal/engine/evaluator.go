// Package engine implements rule evaluation for routines.
//
// This file holds the condition evaluator: a pure function deciding whether a
// routine's trigger condition holds for a given event payload and wall-clock
// time. It performs no I/O and never fails; malformed shapes are rejected at
// rule construction, so evaluation only ever sees valid conditions.
package engine

import (
	"time"

	"github.com/lifekit/routines/internal/models"
)

// EvaluateCondition reports whether the trigger condition holds.
func EvaluateCondition(kind models.TriggerKind, cond models.TriggerConditions, payload models.EventPayload, now time.Time) bool {
	switch kind {
	case models.TriggerHealthScoreDrop:
		// A missing score means "condition not met", not an error.
		if cond.Threshold == nil || payload.HealthScore == nil {
			return false
		}
		return *payload.HealthScore < *cond.Threshold
	case models.TriggerTaskOverdue:
		return payload.IsOverdue
	case models.TriggerEmailReceived:
		// Exact match only; no wildcard or pattern support.
		return cond.Sender != "" && payload.Sender == cond.Sender
	case models.TriggerTimeBased:
		return matchesTime(cond, now)
	case models.TriggerCustom:
		// Custom routines always fire; the action hook owns the semantics.
		return true
	default:
		// Unknown kinds are rejected at rule creation and never reach here.
		return false
	}
}

// matchesTime checks every specified time component against now; unspecified
// components are wildcards. A condition specifying only the hour therefore
// matches every minute of that hour under per-minute sweeping; callers wanting
// a single daily firing must specify both hour and minute.
func matchesTime(cond models.TriggerConditions, now time.Time) bool {
	if cond.Hour != nil && *cond.Hour != now.Hour() {
		return false
	}
	if cond.Minute != nil && *cond.Minute != now.Minute() {
		return false
	}
	if cond.DayOfWeek != nil && *cond.DayOfWeek != int(now.Weekday()) {
		return false
	}
	return true
}
