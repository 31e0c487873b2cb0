package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pushJob(t *testing.T, q *Queue, env envelope) {
	t.Helper()
	require.NoError(t, q.enqueue(context.Background(), env))
}

func TestWorkerExecutesJobs(t *testing.T) {
	_, rdb := testRedis(t)
	q := New(rdb)

	got := make(chan Payload, 1)
	w := NewWorker(rdb, func(_ context.Context, p Payload) error {
		got <- p
		return nil
	}, WorkerOptions{Concurrency: 1})

	w.Start()
	defer w.Stop()

	pushJob(t, q, envelope{ID: "job-1", Payload: validPayload()})

	select {
	case p := <-got:
		assert.Equal(t, validPayload(), p)
	case <-time.After(5 * time.Second):
		t.Fatal("job was never handled")
	}
}

func TestWorkerBoundsConcurrency(t *testing.T) {
	_, rdb := testRedis(t)
	q := New(rdb)

	var mu sync.Mutex
	running, peak := 0, 0
	release := make(chan struct{})

	w := NewWorker(rdb, func(context.Context, Payload) error {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()
		<-release
		mu.Lock()
		running--
		mu.Unlock()
		return nil
	}, WorkerOptions{Concurrency: 2})

	w.Start()

	for i := 0; i < 6; i++ {
		pushJob(t, q, envelope{ID: "job-" + strconv.Itoa(i), Payload: validPayload()})
	}

	// Let the pool saturate, then drain.
	time.Sleep(500 * time.Millisecond)
	close(release)
	w.Stop()

	assert.LessOrEqual(t, peak, 2)
	assert.Positive(t, peak)
}

func TestWorkerStopWaitsForInFlightJob(t *testing.T) {
	_, rdb := testRedis(t)
	q := New(rdb)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	w := NewWorker(rdb, func(context.Context, Payload) error {
		close(started)
		<-release
		close(done)
		return nil
	}, WorkerOptions{Concurrency: 1})

	w.Start()
	pushJob(t, q, envelope{ID: "job-1", Payload: validPayload()})

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never started")
	}

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a job was in flight")
	case <-time.After(200 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop never returned")
	}
	<-done
}

func TestRetryParksWithBackoff(t *testing.T) {
	mr, rdb := testRedis(t)
	w := NewWorker(rdb, nil, WorkerOptions{MaxAttempts: 3, BaseBackoff: 30 * time.Second})

	before := time.Now()
	w.retry(envelope{ID: "job-1", Payload: validPayload()})

	members, err := mr.ZMembers(delayedKey)
	require.NoError(t, err)
	require.Len(t, members, 1)

	var env envelope
	require.NoError(t, json.Unmarshal([]byte(members[0]), &env))
	assert.Equal(t, 1, env.Attempts)

	score, err := mr.ZScore(delayedKey, members[0])
	require.NoError(t, err)
	due := time.UnixMilli(int64(score))
	assert.WithinDuration(t, before.Add(30*time.Second), due, 2*time.Second)
}

func TestRetryBackoffDoubles(t *testing.T) {
	mr, rdb := testRedis(t)
	w := NewWorker(rdb, nil, WorkerOptions{MaxAttempts: 5, BaseBackoff: 30 * time.Second})

	before := time.Now()
	w.retry(envelope{ID: "job-1", Attempts: 1, Payload: validPayload()})

	members, err := mr.ZMembers(delayedKey)
	require.NoError(t, err)
	require.Len(t, members, 1)

	score, err := mr.ZScore(delayedKey, members[0])
	require.NoError(t, err)
	due := time.UnixMilli(int64(score))
	assert.WithinDuration(t, before.Add(60*time.Second), due, 2*time.Second)
}

func TestRetryDropsAfterMaxAttempts(t *testing.T) {
	mr, rdb := testRedis(t)
	w := NewWorker(rdb, nil, WorkerOptions{MaxAttempts: 3})

	w.retry(envelope{ID: "job-1", Attempts: 2, Payload: validPayload()})

	assert.False(t, mr.Exists(delayedKey))
}

func TestPumpOnceMovesDueJobs(t *testing.T) {
	mr, rdb := testRedis(t)
	w := NewWorker(rdb, nil, WorkerOptions{})

	dueJob, _ := json.Marshal(envelope{ID: "due", Payload: validPayload()})
	futureJob, _ := json.Marshal(envelope{ID: "future", Payload: validPayload()})

	ctx := context.Background()
	require.NoError(t, rdb.ZAdd(ctx, delayedKey, &redis.Z{
		Score:  float64(time.Now().Add(-time.Second).UnixMilli()),
		Member: dueJob,
	}).Err())
	require.NoError(t, rdb.ZAdd(ctx, delayedKey, &redis.Z{
		Score:  float64(time.Now().Add(time.Hour).UnixMilli()),
		Member: futureJob,
	}).Err())

	w.pumpOnce(ctx)

	pending, err := mr.List(pendingKey)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	var env envelope
	require.NoError(t, json.Unmarshal([]byte(pending[0]), &env))
	assert.Equal(t, "due", env.ID)

	remaining, err := mr.ZMembers(delayedKey)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestWorkerRetriesFailingJobEndToEnd(t *testing.T) {
	_, rdb := testRedis(t)
	q := New(rdb)

	attempts := make(chan int, 4)
	w := NewWorker(rdb, func(context.Context, Payload) error {
		attempts <- 1
		return errors.New("probe blew up")
	}, WorkerOptions{Concurrency: 1, MaxAttempts: 2, BaseBackoff: 10 * time.Millisecond})

	w.Start()
	defer w.Stop()

	pushJob(t, q, envelope{ID: "job-1", Payload: validPayload()})

	for i := 0; i < 2; i++ {
		select {
		case <-attempts:
		case <-time.After(10 * time.Second):
			t.Fatalf("attempt %d never happened", i+1)
		}
	}

	// Attempt budget spent: nothing left anywhere.
	time.Sleep(1500 * time.Millisecond)
	select {
	case <-attempts:
		t.Fatal("job ran past its attempt budget")
	default:
	}
}
