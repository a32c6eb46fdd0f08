// Package scheduler provides the timer loops that drive scheduled sweeps.
//
// It wraps a cron runner with one entry per sweep granularity (minute, hour,
// day). Ticks of the same granularity are serialized: a slow sweep delays the
// next tick of that entry rather than overlapping it. Different granularities
// run independently. The scheduler has an explicit lifecycle so hosts and
// tests control exactly when ticking begins and ends.
package scheduler

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Granularity identifies one of the fixed sweep cadences.
type Granularity string

const (
	// GranularityMinute ticks at the top of every minute.
	GranularityMinute Granularity = "minute"
	// GranularityHour ticks at the top of every hour.
	GranularityHour Granularity = "hour"
	// GranularityDay ticks at every day boundary.
	GranularityDay Granularity = "day"
)

// cron expressions per granularity (5-field: min, hour, dom, month, dow)
var granularitySpecs = map[Granularity]string{
	GranularityMinute: "* * * * *",
	GranularityHour:   "0 * * * *",
	GranularityDay:    "0 0 * * *",
}

// Scheduler provides cron-based sweep scheduling with an explicit lifecycle.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates a cron scheduler. It does not start ticking until
// Start is called.
func NewScheduler() *Scheduler {
	// 5-field cron parser; recover panics and serialize each entry's runs
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.DelayIfStillRunning(cron.DefaultLogger)),
	)
	return &Scheduler{cron: c}
}

// RegisterSweep schedules task at the given granularity.
func (s *Scheduler) RegisterSweep(g Granularity, task func()) error {
	spec, ok := granularitySpecs[g]
	if !ok {
		return fmt.Errorf("unknown sweep granularity %q", g)
	}
	if err := s.AddJob(spec, task); err != nil {
		return fmt.Errorf("failed to register %s sweep: %w", g, err)
	}
	slog.Debug("Scheduler.RegisterSweep: sweep registered", "granularity", g, "spec", spec)
	return nil
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// Start begins ticking.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("Scheduler started")
}

// Stop stops the scheduler and waits for running sweeps to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("Scheduler stopped")
}
