package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func validPayload() Payload {
	return Payload{
		CheckID:        42,
		URL:            "https://example.com",
		UserID:         7,
		Timeout:        30,
		ExpectedStatus: 200,
	}
}

func TestPayloadValidate(t *testing.T) {
	assert.NoError(t, validPayload().Validate())

	p := validPayload()
	p.CheckID = 0
	assert.Error(t, p.Validate())

	p = validPayload()
	p.URL = ""
	assert.Error(t, p.Validate())

	p = validPayload()
	p.Timeout = 0
	assert.Error(t, p.Validate())

	p = validPayload()
	p.ExpectedStatus = 99
	assert.Error(t, p.Validate())

	p = validPayload()
	p.ExpectedStatus = 600
	assert.Error(t, p.Validate())
}

func TestKeyForCheck(t *testing.T) {
	assert.Equal(t, JobKey("check-42"), KeyForCheck(42))
}

func TestOneShotID(t *testing.T) {
	id := OneShotID(42)
	assert.Regexp(t, `^check-immediate-42-[0-9a-f-]+$`, id)
	assert.NotEqual(t, id, OneShotID(42), "ids must be disposable")
}

func TestAddOneShotJobEnqueues(t *testing.T) {
	mr, rdb := testRedis(t)
	q := New(rdb)

	require.NoError(t, q.AddOneShotJob(context.Background(), "job-1", validPayload()))

	raw, err := mr.Lpop(pendingKey)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	assert.Equal(t, "job-1", env.ID)
	assert.Equal(t, 0, env.Attempts)
	assert.Equal(t, validPayload(), env.Payload)
}

func TestAddOneShotJobRejectsInvalidPayload(t *testing.T) {
	mr, rdb := testRedis(t)
	q := New(rdb)

	p := validPayload()
	p.URL = ""
	assert.Error(t, q.AddOneShotJob(context.Background(), "job-1", p))
	assert.False(t, mr.Exists(pendingKey))
}

func TestAddRecurringJobReplacesExistingKey(t *testing.T) {
	_, rdb := testRedis(t)
	q := New(rdb)
	key := KeyForCheck(42)

	require.NoError(t, q.AddRecurringJob(key, validPayload(), "* * * * *"))
	require.NoError(t, q.AddRecurringJob(key, validPayload(), "0 * * * *"))

	assert.Equal(t, []JobKey{key}, q.ListRecurringJobs())

	q.mu.Lock()
	spec := q.entries[key].spec
	q.mu.Unlock()
	assert.Equal(t, "0 * * * *", spec)
}

func TestAddRecurringJobRejectsBadSpec(t *testing.T) {
	_, rdb := testRedis(t)
	q := New(rdb)

	err := q.AddRecurringJob(KeyForCheck(1), validPayload(), "not a cron spec")
	assert.Error(t, err)
	assert.Empty(t, q.ListRecurringJobs())
}

func TestRemoveRecurringJob(t *testing.T) {
	_, rdb := testRedis(t)
	q := New(rdb)
	key := KeyForCheck(42)

	require.NoError(t, q.AddRecurringJob(key, validPayload(), "* * * * *"))
	require.NoError(t, q.RemoveRecurringJob(key))
	assert.Empty(t, q.ListRecurringJobs())

	// Removing again is a no-op, not an error.
	assert.NoError(t, q.RemoveRecurringJob(key))
}
