package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ankalabs/pulse/pkg/logutils"
)

// Handler runs one job. A failing probe is a normal, successful job; a
// returned error means the job itself could not complete (storage down,
// etc.) and is subject to queue-level retry.
type Handler func(ctx context.Context, payload Payload) error

const (
	popBlock  = time.Second
	pumpEvery = time.Second
	pumpBatch = 100

	// Extra room on top of the probe timeout for persistence and alerting.
	jobGracePeriod = 30 * time.Second
)

// WorkerOptions bounds the pool.
type WorkerOptions struct {
	Concurrency int           // simultaneous jobs, default 5
	MaxAttempts int           // executions before a job is dropped, default 3
	BaseBackoff time.Duration // first retry delay, doubled per attempt, default 30s
}

func (o *WorkerOptions) applyDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 5
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = 30 * time.Second
	}
}

// Worker consumes the pending list with bounded concurrency. Job executions
// share no state beyond the database, so each runs independently. Failed
// executions are parked on a delayed sorted set and pumped back onto the
// pending list when their backoff elapses.
type Worker struct {
	rdb     *redis.Client
	handler Handler
	opts    WorkerOptions

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorker(rdb *redis.Client, handler Handler, opts WorkerOptions) *Worker {
	opts.applyDefaults()
	return &Worker{
		rdb:     rdb,
		handler: handler,
		opts:    opts,
	}
}

// Start launches the pool. Intake stops when Stop is called; jobs already
// picked up run to completion.
func (w *Worker) Start() {
	intake, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	for i := 0; i < w.opts.Concurrency; i++ {
		w.wg.Add(1)
		go w.run(intake, i)
	}

	w.wg.Add(1)
	go w.pumpDelayed(intake)

	logutils.Log.Infof("worker: started with concurrency %d", w.opts.Concurrency)
}

// Stop halts intake and waits for in-flight jobs.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	logutils.Log.Info("worker: stopped")
}

func (w *Worker) run(intake context.Context, id int) {
	defer w.wg.Done()

	for {
		if intake.Err() != nil {
			return
		}

		res, err := w.rdb.BRPop(intake, popBlock, pendingKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || intake.Err() != nil {
				continue
			}
			logutils.Log.Errorf("worker %d: pop: %v", id, err)
			// Back off so a dead Redis does not spin the pool.
			select {
			case <-time.After(time.Second):
			case <-intake.Done():
				return
			}
			continue
		}

		// BRPop returns [key, value].
		var env envelope
		if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
			logutils.Log.Errorf("worker %d: discarding malformed job: %v", id, err)
			continue
		}

		w.execute(env, id)
	}
}

// execute runs one job with its own deadline, detached from the intake
// context so shutdown lets it finish.
func (w *Worker) execute(env envelope, workerID int) {
	deadline := time.Duration(env.Payload.Timeout)*time.Second + jobGracePeriod
	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()

	if err := w.handler(ctx, env.Payload); err != nil {
		logutils.Log.Errorf("worker %d: job %s attempt %d failed: %v", workerID, env.ID, env.Attempts+1, err)
		w.retry(env)
		return
	}
	logutils.Log.Debugf("worker %d: job %s completed", workerID, env.ID)
}

// retry parks the job on the delayed set with exponential backoff, or drops
// it after the attempt budget is spent. Dropping never fabricates a result;
// the check simply shows a stale lastCheckAt until its next tick.
func (w *Worker) retry(env envelope) {
	env.Attempts++
	if env.Attempts >= w.opts.MaxAttempts {
		logutils.Log.Errorf("worker: job %s dropped after %d attempts", env.ID, env.Attempts)
		return
	}

	backoff := w.opts.BaseBackoff << (env.Attempts - 1)
	due := time.Now().Add(backoff)

	data, err := json.Marshal(env)
	if err != nil {
		logutils.Log.Errorf("worker: marshal retry for job %s: %v", env.ID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
	defer cancel()
	err = w.rdb.ZAdd(ctx, delayedKey, &redis.Z{
		Score:  float64(due.UnixMilli()),
		Member: data,
	}).Err()
	if err != nil {
		logutils.Log.Errorf("worker: park retry for job %s: %v", env.ID, err)
	}
}

// pumpDelayed moves due retries back onto the pending list. ZRem before
// LPush so two pumps cannot double a job.
func (w *Worker) pumpDelayed(intake context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(pumpEvery)
	defer ticker.Stop()

	for {
		select {
		case <-intake.Done():
			return
		case <-ticker.C:
			w.pumpOnce(intake)
		}
	}
}

func (w *Worker) pumpOnce(ctx context.Context) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	due, err := w.rdb.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: pumpBatch,
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			logutils.Log.Errorf("worker: scan delayed jobs: %v", err)
		}
		return
	}

	for _, member := range due {
		removed, err := w.rdb.ZRem(ctx, delayedKey, member).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := w.rdb.LPush(ctx, pendingKey, member).Err(); err != nil {
			logutils.Log.Errorf("worker: requeue delayed job: %v", err)
		}
	}
}
