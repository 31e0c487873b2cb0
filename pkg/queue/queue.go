package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/ankalabs/pulse/pkg/logutils"
)

const (
	pendingKey = "pulse:queue:pending"
	delayedKey = "pulse:queue:delayed"

	enqueueTimeout = 5 * time.Second
)

// JobKey identifies the recurring slot of one check. The key doubles as the
// invariant "at most one recurring job per check": re-adding under the same
// key replaces the previous schedule. Build keys with KeyForCheck only.
type JobKey string

func KeyForCheck(checkID uint) JobKey {
	return JobKey(fmt.Sprintf("check-%d", checkID))
}

// Payload is the job body dispatched to workers. It carries everything the
// probe needs so a worker never has to read the check row before probing.
type Payload struct {
	CheckID        uint   `json:"checkId"`
	URL            string `json:"url"`
	UserID         uint   `json:"userId"`
	Timeout        int    `json:"timeout"` // seconds
	ExpectedStatus int    `json:"expectedStatusCode"`
}

// Validate rejects malformed payloads at enqueue time, before they can park
// in Redis and fail in a worker.
func (p Payload) Validate() error {
	if p.CheckID == 0 {
		return fmt.Errorf("payload: missing check id")
	}
	if p.URL == "" {
		return fmt.Errorf("payload: missing url for check %d", p.CheckID)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("payload: non-positive timeout for check %d", p.CheckID)
	}
	if p.ExpectedStatus < 100 || p.ExpectedStatus > 599 {
		return fmt.Errorf("payload: expected status %d out of range for check %d", p.ExpectedStatus, p.CheckID)
	}
	return nil
}

// envelope is the wire form of a job on the Redis queue.
type envelope struct {
	ID       string  `json:"id"`
	Attempts int     `json:"attempts"`
	Payload  Payload `json:"payload"`
}

type recurringEntry struct {
	entryID cron.EntryID
	spec    string
}

// Queue owns the recurring-job registry and the durable pending list.
// Recurrence is driven by an in-process cron; each tick serializes the
// job payload onto a Redis list that survives worker restarts. The
// registry is reconciled from the database on startup (scheduler.SyncChecks),
// so in-memory cron entries are not a durability concern.
type Queue struct {
	rdb  *redis.Client
	cron *cron.Cron

	mu      sync.Mutex
	entries map[JobKey]recurringEntry
}

func New(rdb *redis.Client) *Queue {
	return &Queue{
		rdb:     rdb,
		cron:    cron.New(),
		entries: make(map[JobKey]recurringEntry),
	}
}

// Start begins firing recurring jobs.
func (q *Queue) Start() {
	q.cron.Start()
}

// Stop halts the recurrence ticker and waits for any tick in flight.
func (q *Queue) Stop() {
	<-q.cron.Stop().Done()
}

// AddRecurringJob registers (or replaces) the recurring job under key.
// Re-adding the same key never yields two entries.
func (q *Queue) AddRecurringJob(key JobKey, payload Payload, spec string) error {
	if err := payload.Validate(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if prev, ok := q.entries[key]; ok {
		q.cron.Remove(prev.entryID)
		delete(q.entries, key)
	}

	entryID, err := q.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
		defer cancel()
		if err := q.enqueue(ctx, envelope{ID: string(key) + "-" + uuid.NewString(), Payload: payload}); err != nil {
			logutils.Log.Errorf("queue: enqueue tick for %s: %v", key, err)
		}
	})
	if err != nil {
		return fmt.Errorf("add recurring job %s with spec %q: %w", key, spec, err)
	}

	q.entries[key] = recurringEntry{entryID: entryID, spec: spec}
	return nil
}

// RemoveRecurringJob cancels the recurring job under key. Removing a key
// that was never registered is a no-op, not an error.
func (q *Queue) RemoveRecurringJob(key JobKey) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if entry, ok := q.entries[key]; ok {
		q.cron.Remove(entry.entryID)
		delete(q.entries, key)
	}
	return nil
}

// ListRecurringJobs returns the registered keys in no particular order.
func (q *Queue) ListRecurringJobs() []JobKey {
	q.mu.Lock()
	defer q.mu.Unlock()

	keys := make([]JobKey, 0, len(q.entries))
	for key := range q.entries {
		keys = append(keys, key)
	}
	return keys
}

// AddOneShotJob enqueues a single non-repeating execution under a disposable
// id, separate from the recurring slot.
func (q *Queue) AddOneShotJob(ctx context.Context, id string, payload Payload) error {
	if err := payload.Validate(); err != nil {
		return err
	}
	return q.enqueue(ctx, envelope{ID: id, Payload: payload})
}

// OneShotID builds the disposable id for an immediate execution of a check.
func OneShotID(checkID uint) string {
	return fmt.Sprintf("check-immediate-%d-%s", checkID, uuid.NewString())
}

func (q *Queue) enqueue(ctx context.Context, env envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", env.ID, err)
	}
	if err := q.rdb.LPush(ctx, pendingKey, data).Err(); err != nil {
		return fmt.Errorf("push job %s: %w", env.ID, err)
	}
	return nil
}
