// Package cleaner drops check results that have aged out of the owner
// plan's retention window. It runs outside the probe pipeline on its own
// daily schedule.
package cleaner

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/ankalabs/pulse/dao"
	"github.com/ankalabs/pulse/dao/model"
	"github.com/ankalabs/pulse/pkg/logutils"
)

// purgeSpec runs the purge nightly, off the top-of-hour probe bursts.
const purgeSpec = "20 3 * * *"

const (
	purgeTimeout     = 10 * time.Minute
	purgeParallelism = 4
)

type RetentionCleaner struct {
	store *dao.Store
	cron  *cron.Cron
}

func NewRetentionCleaner(store *dao.Store) *RetentionCleaner {
	return &RetentionCleaner{
		store: store,
		cron:  cron.New(),
	}
}

// Start schedules the nightly purge.
func (c *RetentionCleaner) Start() error {
	_, err := c.cron.AddFunc(purgeSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
		defer cancel()
		if err := c.PurgeExpiredResults(ctx); err != nil {
			logutils.Log.Errorf("cleaner: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule retention purge: %w", err)
	}
	c.cron.Start()
	return nil
}

func (c *RetentionCleaner) Stop() {
	<-c.cron.Stop().Done()
}

// PurgeExpiredResults walks every user and deletes results older than their
// plan's retention window. Per-user failures are logged and do not abort
// the run.
func (c *RetentionCleaner) PurgeExpiredResults(ctx context.Context) error {
	users, err := c.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("purge: list users: %w", err)
	}

	var purged atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(purgeParallelism)

	for i := range users {
		user := &users[i]
		g.Go(func() error {
			retention := model.PlanFor(user.PlanType).DataRetentionDays
			cutoff := time.Now().AddDate(0, 0, -retention)

			n, err := c.store.PurgeResultsBefore(gctx, user.ID, cutoff)
			if err != nil {
				// One user's purge failing must not abort the others.
				logutils.Log.Errorf("cleaner: purge results for user %d: %v", user.ID, err)
				return nil
			}
			purged.Add(n)
			return nil
		})
	}
	_ = g.Wait()

	logutils.Log.Infof("cleaner: purged %d expired check results across %d users", purged.Load(), len(users))
	return nil
}
