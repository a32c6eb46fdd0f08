package engine

import (
	"testing"
	"time"

	"github.com/lifekit/routines/internal/models"
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func TestEvaluateHealthScoreDrop(t *testing.T) {
	cond := models.TriggerConditions{Threshold: floatPtr(50)}
	now := time.Now()

	if !EvaluateCondition(models.TriggerHealthScoreDrop, cond, models.EventPayload{HealthScore: floatPtr(49)}, now) {
		t.Error("score below threshold should fire")
	}
	// Boundary: equal to threshold does not fire
	if EvaluateCondition(models.TriggerHealthScoreDrop, cond, models.EventPayload{HealthScore: floatPtr(50)}, now) {
		t.Error("score equal to threshold should not fire")
	}
	if EvaluateCondition(models.TriggerHealthScoreDrop, cond, models.EventPayload{HealthScore: floatPtr(51)}, now) {
		t.Error("score above threshold should not fire")
	}
	// Missing score is "condition not met", not an error
	if EvaluateCondition(models.TriggerHealthScoreDrop, cond, models.EventPayload{}, now) {
		t.Error("missing health score should not fire")
	}
}

func TestEvaluateTaskOverdue(t *testing.T) {
	now := time.Now()
	if !EvaluateCondition(models.TriggerTaskOverdue, models.TriggerConditions{}, models.EventPayload{IsOverdue: true}, now) {
		t.Error("overdue task should fire")
	}
	if EvaluateCondition(models.TriggerTaskOverdue, models.TriggerConditions{}, models.EventPayload{IsOverdue: false}, now) {
		t.Error("non-overdue task should not fire")
	}
}

func TestEvaluateEmailReceived(t *testing.T) {
	cond := models.TriggerConditions{Sender: "boss@co.com"}
	now := time.Now()

	if !EvaluateCondition(models.TriggerEmailReceived, cond, models.EventPayload{Sender: "boss@co.com"}, now) {
		t.Error("matching sender should fire")
	}
	if EvaluateCondition(models.TriggerEmailReceived, cond, models.EventPayload{Sender: "other@co.com"}, now) {
		t.Error("non-matching sender should not fire")
	}
	if EvaluateCondition(models.TriggerEmailReceived, cond, models.EventPayload{}, now) {
		t.Error("missing sender should not fire")
	}
}

func TestEvaluateTimeBasedFullySpecified(t *testing.T) {
	cond := models.TriggerConditions{Hour: intPtr(8), Minute: intPtr(0)}

	at := func(hour, minute int) time.Time {
		return time.Date(2026, 8, 30, hour, minute, 0, 0, time.UTC)
	}

	if !EvaluateCondition(models.TriggerTimeBased, cond, models.EventPayload{}, at(8, 0)) {
		t.Error("8:00 should match {hour:8, minute:0}")
	}
	if EvaluateCondition(models.TriggerTimeBased, cond, models.EventPayload{}, at(8, 1)) {
		t.Error("8:01 should not match {hour:8, minute:0}")
	}
	if EvaluateCondition(models.TriggerTimeBased, cond, models.EventPayload{}, at(9, 0)) {
		t.Error("9:00 should not match {hour:8, minute:0}")
	}
}

func TestEvaluateTimeBasedHourOnlyMatchesEveryMinute(t *testing.T) {
	// Unspecified minute is a wildcard: an hour-only condition matches every
	// minute within that hour under per-minute sweeping.
	cond := models.TriggerConditions{Hour: intPtr(8)}

	for _, minute := range []int{0, 15, 59} {
		now := time.Date(2026, 8, 30, 8, minute, 0, 0, time.UTC)
		if !EvaluateCondition(models.TriggerTimeBased, cond, models.EventPayload{}, now) {
			t.Errorf("8:%02d should match {hour:8}", minute)
		}
	}
	now := time.Date(2026, 8, 30, 7, 30, 0, 0, time.UTC)
	if EvaluateCondition(models.TriggerTimeBased, cond, models.EventPayload{}, now) {
		t.Error("7:30 should not match {hour:8}")
	}
}

func TestEvaluateTimeBasedDayOfWeek(t *testing.T) {
	// 2026-08-30 is a Sunday (weekday 0)
	sunday := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	monday := sunday.AddDate(0, 0, 1)

	cond := models.TriggerConditions{DayOfWeek: intPtr(0)}
	if !EvaluateCondition(models.TriggerTimeBased, cond, models.EventPayload{}, sunday) {
		t.Error("Sunday should match day_of_week 0")
	}
	if EvaluateCondition(models.TriggerTimeBased, cond, models.EventPayload{}, monday) {
		t.Error("Monday should not match day_of_week 0")
	}
}

func TestEvaluateCustomAlwaysFires(t *testing.T) {
	if !EvaluateCondition(models.TriggerCustom, models.TriggerConditions{}, models.EventPayload{}, time.Now()) {
		t.Error("custom triggers always fire")
	}
}

func TestEvaluateUnknownKind(t *testing.T) {
	if EvaluateCondition("teleport", models.TriggerConditions{}, models.EventPayload{}, time.Now()) {
		t.Error("unknown trigger kinds never fire")
	}
}
