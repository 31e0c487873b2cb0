package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/ankalabs/pulse/dao/model"
	"github.com/ankalabs/pulse/pkg/logutils"
	"github.com/ankalabs/pulse/pkg/queue"
)

// JobRegistry is the queue surface the scheduler drives. Registrations are
// idempotent per key: adding under an existing key replaces the schedule.
type JobRegistry interface {
	AddRecurringJob(key queue.JobKey, payload queue.Payload, spec string) error
	AddOneShotJob(ctx context.Context, id string, payload queue.Payload) error
	RemoveRecurringJob(key queue.JobKey) error
	ListRecurringJobs() []queue.JobKey
}

// CheckSource loads the durable check state the registry is reconciled from.
type CheckSource interface {
	FindActiveChecks(ctx context.Context) ([]model.Check, error)
}

// Scheduler maintains the bijection between active checks and recurring
// jobs. It holds no state of its own; the registry is the single source of
// truth for "is this check being probed".
type Scheduler struct {
	registry JobRegistry
	checks   CheckSource
}

func New(registry JobRegistry, checks CheckSource) *Scheduler {
	return &Scheduler{
		registry: registry,
		checks:   checks,
	}
}

// cronSpecFor maps the user-facing interval to a fixed recurrence rule.
// The table is deliberate, not configurable: plan enforcement happens
// upstream and the scheduler only accepts checks that passed it.
func cronSpecFor(interval model.CheckInterval) string {
	switch interval {
	case model.Interval1Min:
		return "* * * * *"
	case model.Interval5Min:
		return "*/5 * * * *"
	case model.Interval15Min:
		return "*/15 * * * *"
	case model.Interval30Min:
		return "*/30 * * * *"
	case model.Interval1Hour:
		return "0 * * * *"
	case model.Interval1Day:
		return "0 0 * * *"
	default:
		// Safety fallback: an unrecognized interval keeps probing at the
		// 30 minute default instead of silently never running.
		return "*/30 * * * *"
	}
}

func payloadFor(check *model.Check) queue.Payload {
	return queue.Payload{
		CheckID:        check.ID,
		URL:            check.URL,
		UserID:         check.UserID,
		Timeout:        check.Timeout,
		ExpectedStatus: check.ExpectedStatus,
	}
}

// ScheduleCheck registers the recurring job for a check. With runImmediately
// it additionally enqueues one disposable execution so the user sees a first
// result right away instead of waiting for the next tick.
func (s *Scheduler) ScheduleCheck(ctx context.Context, check *model.Check, runImmediately bool) error {
	payload := payloadFor(check)
	spec := cronSpecFor(check.Interval)
	key := queue.KeyForCheck(check.ID)

	if err := s.registry.AddRecurringJob(key, payload, spec); err != nil {
		return fmt.Errorf("schedule check %d: %w", check.ID, err)
	}

	if runImmediately {
		if err := s.registry.AddOneShotJob(ctx, queue.OneShotID(check.ID), payload); err != nil {
			return fmt.Errorf("schedule immediate run of check %d: %w", check.ID, err)
		}
	}

	logutils.Log.Infof("scheduler: check %d scheduled with interval %s", check.ID, check.Interval)
	return nil
}

// RemoveCheck cancels the recurring job for a check id. Removing a check
// that was never scheduled is a no-op.
func (s *Scheduler) RemoveCheck(checkID uint) error {
	return s.registry.RemoveRecurringJob(queue.KeyForCheck(checkID))
}

// UpdateCheck re-registers a check after its parameters changed. Changes
// take effect on the next natural tick; no immediate execution.
func (s *Scheduler) UpdateCheck(ctx context.Context, check *model.Check) error {
	if err := s.RemoveCheck(check.ID); err != nil {
		return fmt.Errorf("update check %d: %w", check.ID, err)
	}
	return s.ScheduleCheck(ctx, check, false)
}

// SyncChecks reconciles the registry with durable state, typically after a
// restart. One bad check never aborts the sync: its failure is logged and
// the loop continues.
func (s *Scheduler) SyncChecks(ctx context.Context) error {
	start := time.Now()

	checks, err := s.checks.FindActiveChecks(ctx)
	if err != nil {
		return fmt.Errorf("sync checks: load active checks: %w", err)
	}

	scheduled := 0
	for i := range checks {
		if err := s.ScheduleCheck(ctx, &checks[i], false); err != nil {
			logutils.Log.Errorf("scheduler: sync: %v", err)
			continue
		}
		scheduled++
	}

	logutils.Log.Infof("scheduler: synced %d/%d active checks in %s", scheduled, len(checks), time.Since(start))
	return nil
}
