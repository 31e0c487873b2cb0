package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ankalabs/pulse/dao"
	"github.com/ankalabs/pulse/dao/model"
	"github.com/ankalabs/pulse/internal/util"
	"github.com/ankalabs/pulse/pkg/queue"
	"github.com/ankalabs/pulse/pkg/scheduler"
)

// memRegistry stands in for the Redis-backed queue so handler tests need no
// Redis instance.
type memRegistry struct {
	recurring map[queue.JobKey]string
	oneShots  int
}

func newMemRegistry() *memRegistry {
	return &memRegistry{recurring: make(map[queue.JobKey]string)}
}

func (m *memRegistry) AddRecurringJob(key queue.JobKey, _ queue.Payload, spec string) error {
	m.recurring[key] = spec
	return nil
}

func (m *memRegistry) AddOneShotJob(context.Context, string, queue.Payload) error {
	m.oneShots++
	return nil
}

func (m *memRegistry) RemoveRecurringJob(key queue.JobKey) error {
	delete(m.recurring, key)
	return nil
}

func (m *memRegistry) ListRecurringJobs() []queue.JobKey {
	keys := make([]queue.JobKey, 0, len(m.recurring))
	for key := range m.recurring {
		keys = append(keys, key)
	}
	return keys
}

type apiFixture struct {
	store    *dao.Store
	registry *memRegistry
	router   *gin.Engine
	user     *model.User
}

func newAPIFixture(t *testing.T, plan model.PlanType) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(
		sqlite.Open(filepath.Join(t.TempDir(), "pulse.db")),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	require.NoError(t, err)
	require.NoError(t, dao.Migrate(db))
	store := dao.NewStore(db)

	user := &model.User{
		Name:               "Ada",
		Email:              "ada@example.com",
		PlanType:           plan,
		EmailAlertsEnabled: true,
	}
	require.NoError(t, db.Create(user).Error)

	registry := newMemRegistry()
	mgr := NewCheckMgr(&RegisterConfig{
		Store:     store,
		Scheduler: scheduler.New(registry, store),
	})

	router := gin.New()
	router.Use(func(c *gin.Context) {
		util.SetJWTContext(c, util.JWTMessage{UserID: user.ID, Username: user.Name})
	})
	mgr.RegisterProtected(router.Group(mgr.GetName()))

	return &apiFixture{store: store, registry: registry, router: router, user: user}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeCheck(t *testing.T, rec *httptest.ResponseRecorder) model.Check {
	t.Helper()
	var resp struct {
		Data model.Check `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data
}

func TestCreateCheckSchedulesImmediately(t *testing.T) {
	f := newAPIFixture(t, model.PlanPro)

	rec := f.do(t, http.MethodPost, "/checks", gin.H{
		"url":      "https://example.com/health",
		"name":     "api",
		"interval": "1min",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	check := decodeCheck(t, rec)
	assert.Equal(t, 30, check.Timeout, "timeout defaults to 30s")
	assert.Equal(t, 200, check.ExpectedStatus, "expected status defaults to 200")
	assert.Equal(t, model.CheckStatusActive, check.Status)

	assert.Contains(t, f.registry.recurring, queue.KeyForCheck(check.ID))
	assert.Equal(t, 1, f.registry.oneShots, "creation triggers one immediate run")
}

func TestCreateCheckRejectsBadURL(t *testing.T) {
	f := newAPIFixture(t, model.PlanPro)

	rec := f.do(t, http.MethodPost, "/checks", gin.H{
		"url":      "not a url",
		"interval": "1min",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.registry.recurring)
}

func TestCreateCheckEnforcesMaxChecks(t *testing.T) {
	f := newAPIFixture(t, model.PlanFree)

	for i := 0; i < model.PlanFor(model.PlanFree).MaxChecks; i++ {
		rec := f.do(t, http.MethodPost, "/checks", gin.H{
			"url":      "https://example.com/" + strconv.Itoa(i),
			"interval": "30min",
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/checks", gin.H{
		"url":      "https://example.com/one-too-many",
		"interval": "30min",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateCheckEnforcesIntervalFloor(t *testing.T) {
	f := newAPIFixture(t, model.PlanFree)

	rec := f.do(t, http.MethodPost, "/checks", gin.H{
		"url":      "https://example.com",
		"interval": "1min",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, f.registry.recurring)
}

func TestCreateCheckEnforcesRegionCap(t *testing.T) {
	f := newAPIFixture(t, model.PlanFree)

	rec := f.do(t, http.MethodPost, "/checks", gin.H{
		"url":      "https://example.com",
		"interval": "30min",
		"regions":  []string{"us-east", "eu-west"},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateCheckReschedules(t *testing.T) {
	f := newAPIFixture(t, model.PlanPro)

	created := decodeCheck(t, f.do(t, http.MethodPost, "/checks", gin.H{
		"url":      "https://example.com",
		"interval": "1min",
	}))

	id := strconv.FormatUint(uint64(created.ID), 10)
	rec := f.do(t, http.MethodPut, "/checks/"+id, gin.H{"interval": "1hour"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "0 * * * *", f.registry.recurring[queue.KeyForCheck(created.ID)])
	assert.Equal(t, 1, f.registry.oneShots, "updates never trigger an immediate run")
}

func TestPauseAndResume(t *testing.T) {
	f := newAPIFixture(t, model.PlanPro)

	created := decodeCheck(t, f.do(t, http.MethodPost, "/checks", gin.H{
		"url":      "https://example.com",
		"interval": "1min",
	}))
	id := strconv.FormatUint(uint64(created.ID), 10)

	rec := f.do(t, http.MethodPost, "/checks/"+id+"/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.registry.recurring)

	got, err := f.store.GetCheck(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckStatusPaused, got.Status)

	rec = f.do(t, http.MethodPost, "/checks/"+id+"/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, f.registry.recurring, queue.KeyForCheck(created.ID))
	assert.Equal(t, 1, f.registry.oneShots, "resume waits for the next tick")
}

func TestDeleteCheckUnschedulesAndHides(t *testing.T) {
	f := newAPIFixture(t, model.PlanPro)

	created := decodeCheck(t, f.do(t, http.MethodPost, "/checks", gin.H{
		"url":      "https://example.com",
		"interval": "1min",
	}))
	id := strconv.FormatUint(uint64(created.ID), 10)

	rec := f.do(t, http.MethodDelete, "/checks/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.registry.recurring)

	list := f.do(t, http.MethodGet, "/checks", nil)
	var resp struct {
		Data []model.Check `json:"data"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &resp))
	assert.Empty(t, resp.Data)
}

func TestGetCheckOfAnotherUserIs404(t *testing.T) {
	f := newAPIFixture(t, model.PlanPro)

	other := &model.User{Name: "Eve", Email: "eve@example.com", PlanType: model.PlanFree}
	require.NoError(t, f.store.DB().Create(other).Error)
	foreign := &model.Check{
		UserID: other.ID, URL: "https://example.org",
		Interval: model.Interval30Min, Timeout: 30, ExpectedStatus: 200,
		Status: model.CheckStatusActive,
	}
	require.NoError(t, f.store.CreateCheck(context.Background(), foreign))

	rec := f.do(t, http.MethodGet, "/checks/"+strconv.FormatUint(uint64(foreign.ID), 10), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
