package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/ankalabs/pulse/dao"
	"github.com/ankalabs/pulse/dao/model"
	"github.com/ankalabs/pulse/internal/resputil"
	"github.com/ankalabs/pulse/internal/util"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewAlertMgr)
}

type AlertMgr struct {
	name  string
	store *dao.Store
}

func NewAlertMgr(conf *RegisterConfig) Manager {
	return &AlertMgr{
		name:  "alerts",
		store: conf.Store,
	}
}

func (mgr *AlertMgr) GetName() string { return mgr.name }

func (mgr *AlertMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *AlertMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("/checks/:id", mgr.GetAlertHistory)
	g.GET("/checks/:id/stats", mgr.GetAlertStats)
	g.PUT("/preferences", mgr.UpdatePreferences)
}

const defaultHistoryLimit = 20

func (mgr *AlertMgr) GetAlertHistory(c *gin.Context) {
	check, ok := mgr.ownedCheck(c)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	alerts, err := mgr.store.ListAlerts(c, check.ID, limit)
	if err != nil {
		resputil.Error(c, fmt.Sprintf("list alerts: %v", err), resputil.NotSpecified)
		return
	}
	resputil.Success(c, alerts)
}

type alertStats struct {
	TotalAlerts      int     `json:"totalAlerts"`
	SuccessfulAlerts int     `json:"successfulAlerts"`
	FailedAlerts     int     `json:"failedAlerts"`
	SuccessRate      float64 `json:"successRate"`
	LastAlertSentAt  *string `json:"lastAlertSentAt"`
}

func (mgr *AlertMgr) GetAlertStats(c *gin.Context) {
	check, ok := mgr.ownedCheck(c)
	if !ok {
		return
	}

	alerts, err := mgr.store.ListAllAlerts(c, check.ID)
	if err != nil {
		resputil.Error(c, fmt.Sprintf("load alerts: %v", err), resputil.NotSpecified)
		return
	}

	stats := alertStats{TotalAlerts: len(alerts)}
	stats.SuccessfulAlerts = lo.CountBy(alerts, func(a model.Alert) bool { return a.Success })
	stats.FailedAlerts = stats.TotalAlerts - stats.SuccessfulAlerts
	if stats.TotalAlerts > 0 {
		stats.SuccessRate = float64(stats.SuccessfulAlerts) / float64(stats.TotalAlerts) * 100
		last := lo.MaxBy(alerts, func(a, b model.Alert) bool { return a.SentAt.After(b.SentAt) })
		formatted := last.SentAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		stats.LastAlertSentAt = &formatted
	}

	resputil.Success(c, stats)
}

type preferencesReq struct {
	EmailAlertsEnabled    *bool  `json:"emailAlertsEnabled" binding:"required"`
	TelegramAlertsEnabled *bool  `json:"telegramAlertsEnabled" binding:"required"`
	TelegramChatID        string `json:"telegramChatId"`
}

func (mgr *AlertMgr) UpdatePreferences(c *gin.Context) {
	token := util.GetToken(c)

	var req preferencesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequest(c, err.Error())
		return
	}

	err := mgr.store.UpdateAlertPreferences(c, token.UserID,
		*req.EmailAlertsEnabled, *req.TelegramAlertsEnabled, req.TelegramChatID)
	if err != nil {
		resputil.Error(c, fmt.Sprintf("update preferences: %v", err), resputil.NotSpecified)
		return
	}
	resputil.Success(c, "")
}

func (mgr *AlertMgr) ownedCheck(c *gin.Context) (*model.Check, bool) {
	token := util.GetToken(c)

	var uri struct {
		ID uint `uri:"id" binding:"required"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequest(c, err.Error())
		return nil, false
	}

	check, err := mgr.store.GetUserCheck(c, uri.ID, token.UserID)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			resputil.HTTPError(c, http.StatusNotFound, "check not found", resputil.NotFound)
		} else {
			resputil.Error(c, fmt.Sprintf("load check: %v", err), resputil.NotSpecified)
		}
		return nil, false
	}
	return check, true
}
