package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/ankalabs/pulse/dao"
	"github.com/ankalabs/pulse/dao/model"
	"github.com/ankalabs/pulse/internal/resputil"
	"github.com/ankalabs/pulse/internal/util"
	"github.com/ankalabs/pulse/pkg/logutils"
	"github.com/ankalabs/pulse/pkg/scheduler"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewCheckMgr)
}

type CheckMgr struct {
	name      string
	store     *dao.Store
	scheduler *scheduler.Scheduler
}

func NewCheckMgr(conf *RegisterConfig) Manager {
	return &CheckMgr{
		name:      "checks",
		store:     conf.Store,
		scheduler: conf.Scheduler,
	}
}

func (mgr *CheckMgr) GetName() string { return mgr.name }

func (mgr *CheckMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *CheckMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("", mgr.CreateCheck)
	g.GET("", mgr.ListChecks)
	g.GET("/:id", mgr.GetCheck)
	g.PUT("/:id", mgr.UpdateCheck)
	g.POST("/:id/pause", mgr.PauseCheck)
	g.POST("/:id/resume", mgr.ResumeCheck)
	g.DELETE("/:id", mgr.DeleteCheck)
	g.GET("/:id/results", mgr.ListResults)
}

type createCheckReq struct {
	URL            string              `json:"url" binding:"required,url"`
	Name           string              `json:"name"`
	Interval       model.CheckInterval `json:"interval" binding:"required"`
	Regions        []string            `json:"regions"`
	Timeout        int                 `json:"timeout"`
	ExpectedStatus int                 `json:"expectedStatusCode"`
}

type updateCheckReq struct {
	URL            *string              `json:"url" binding:"omitempty,url"`
	Name           *string              `json:"name"`
	Interval       *model.CheckInterval `json:"interval"`
	Regions        *[]string            `json:"regions"`
	Timeout        *int                 `json:"timeout"`
	ExpectedStatus *int                 `json:"expectedStatusCode"`
}

// CreateCheck godoc
// @Summary Create a monitored check and schedule its recurring probe
// @Tags Check
// @Accept json
// @Produce json
// @Security Bearer
// @Router /v1/checks [post]
func (mgr *CheckMgr) CreateCheck(c *gin.Context) {
	token := util.GetToken(c)

	var req createCheckReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequest(c, err.Error())
		return
	}

	user, err := mgr.store.GetUser(c, token.UserID)
	if err != nil {
		resputil.Error(c, fmt.Sprintf("load user: %v", err), resputil.NotSpecified)
		return
	}
	plan := model.PlanFor(user.PlanType)

	count, err := mgr.store.CountUserChecks(c, user.ID)
	if err != nil {
		resputil.Error(c, fmt.Sprintf("count checks: %v", err), resputil.NotSpecified)
		return
	}
	if count >= int64(plan.MaxChecks) {
		resputil.HTTPError(c, http.StatusForbidden,
			fmt.Sprintf("plan %s allows at most %d checks", plan.Name, plan.MaxChecks), resputil.PlanLimitExceeded)
		return
	}
	if req.Interval.Minutes() < plan.MinIntervalMinutes {
		resputil.HTTPError(c, http.StatusForbidden,
			fmt.Sprintf("plan %s requires an interval of at least %d minutes", plan.Name, plan.MinIntervalMinutes),
			resputil.PlanLimitExceeded)
		return
	}
	if len(req.Regions) > plan.MaxRegions {
		resputil.HTTPError(c, http.StatusForbidden,
			fmt.Sprintf("plan %s allows at most %d regions", plan.Name, plan.MaxRegions), resputil.PlanLimitExceeded)
		return
	}

	check := &model.Check{
		UserID:         user.ID,
		URL:            req.URL,
		Name:           req.Name,
		Interval:       req.Interval,
		Regions:        datatypes.NewJSONSlice(req.Regions),
		Timeout:        req.Timeout,
		ExpectedStatus: req.ExpectedStatus,
		Status:         model.CheckStatusActive,
	}
	if check.Timeout <= 0 {
		check.Timeout = 30
	}
	if check.ExpectedStatus == 0 {
		check.ExpectedStatus = 200
	}

	if err := mgr.store.CreateCheck(c, check); err != nil {
		resputil.Error(c, fmt.Sprintf("create check: %v", err), resputil.NotSpecified)
		return
	}

	// The registry is the source of truth for "is this check probed"; if
	// registration fails, the freshly created row is rolled back so the two
	// never disagree.
	if err := mgr.scheduler.ScheduleCheck(c, check, true); err != nil {
		logutils.Log.Errorf("checks: scheduling new check %d failed, rolling back: %v", check.ID, err)
		if dbErr := mgr.store.SetCheckStatus(c, check.ID, model.CheckStatusDeleted); dbErr != nil {
			logutils.Log.Errorf("checks: rollback of check %d failed: %v", check.ID, dbErr)
		}
		resputil.Error(c, fmt.Sprintf("schedule check: %v", err), resputil.NotSpecified)
		return
	}

	resputil.Success(c, check)
}

// ListChecks godoc
// @Summary List the caller's checks with their health snapshots
// @Tags Check
// @Produce json
// @Security Bearer
// @Router /v1/checks [get]
func (mgr *CheckMgr) ListChecks(c *gin.Context) {
	token := util.GetToken(c)

	checks, err := mgr.store.ListUserChecks(c, token.UserID)
	if err != nil {
		resputil.Error(c, fmt.Sprintf("list checks: %v", err), resputil.NotSpecified)
		return
	}
	resputil.Success(c, checks)
}

func (mgr *CheckMgr) GetCheck(c *gin.Context) {
	check, ok := mgr.ownedCheck(c)
	if !ok {
		return
	}
	resputil.Success(c, check)
}

// UpdateCheck applies parameter changes and re-registers the recurring job.
// The new schedule takes effect on the next natural tick.
func (mgr *CheckMgr) UpdateCheck(c *gin.Context) {
	token := util.GetToken(c)

	check, ok := mgr.ownedCheck(c)
	if !ok {
		return
	}

	var req updateCheckReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequest(c, err.Error())
		return
	}

	user, err := mgr.store.GetUser(c, token.UserID)
	if err != nil {
		resputil.Error(c, fmt.Sprintf("load user: %v", err), resputil.NotSpecified)
		return
	}
	plan := model.PlanFor(user.PlanType)

	if req.URL != nil {
		check.URL = *req.URL
	}
	if req.Name != nil {
		check.Name = *req.Name
	}
	if req.Interval != nil {
		if req.Interval.Minutes() < plan.MinIntervalMinutes {
			resputil.HTTPError(c, http.StatusForbidden,
				fmt.Sprintf("plan %s requires an interval of at least %d minutes", plan.Name, plan.MinIntervalMinutes),
				resputil.PlanLimitExceeded)
			return
		}
		check.Interval = *req.Interval
	}
	if req.Regions != nil {
		if len(*req.Regions) > plan.MaxRegions {
			resputil.HTTPError(c, http.StatusForbidden,
				fmt.Sprintf("plan %s allows at most %d regions", plan.Name, plan.MaxRegions), resputil.PlanLimitExceeded)
			return
		}
		check.Regions = datatypes.NewJSONSlice(*req.Regions)
	}
	if req.Timeout != nil && *req.Timeout > 0 {
		check.Timeout = *req.Timeout
	}
	if req.ExpectedStatus != nil && *req.ExpectedStatus != 0 {
		check.ExpectedStatus = *req.ExpectedStatus
	}

	if err := mgr.store.UpdateCheck(c, check); err != nil {
		resputil.Error(c, fmt.Sprintf("update check: %v", err), resputil.NotSpecified)
		return
	}

	if check.Status == model.CheckStatusActive {
		if err := mgr.scheduler.UpdateCheck(c, check); err != nil {
			resputil.Error(c, fmt.Sprintf("reschedule check: %v", err), resputil.NotSpecified)
			return
		}
	}

	resputil.Success(c, check)
}

// PauseCheck removes the recurring job but keeps the check for later
// reactivation. An execution already dispatched to a worker completes.
func (mgr *CheckMgr) PauseCheck(c *gin.Context) {
	check, ok := mgr.ownedCheck(c)
	if !ok {
		return
	}

	if err := mgr.scheduler.RemoveCheck(check.ID); err != nil {
		resputil.Error(c, fmt.Sprintf("unschedule check: %v", err), resputil.NotSpecified)
		return
	}
	if err := mgr.store.SetCheckStatus(c, check.ID, model.CheckStatusPaused); err != nil {
		resputil.Error(c, fmt.Sprintf("pause check: %v", err), resputil.NotSpecified)
		return
	}
	resputil.Success(c, "")
}

func (mgr *CheckMgr) ResumeCheck(c *gin.Context) {
	check, ok := mgr.ownedCheck(c)
	if !ok {
		return
	}

	if err := mgr.store.SetCheckStatus(c, check.ID, model.CheckStatusActive); err != nil {
		resputil.Error(c, fmt.Sprintf("resume check: %v", err), resputil.NotSpecified)
		return
	}
	check.Status = model.CheckStatusActive
	if err := mgr.scheduler.ScheduleCheck(c, check, false); err != nil {
		resputil.Error(c, fmt.Sprintf("schedule check: %v", err), resputil.NotSpecified)
		return
	}
	resputil.Success(c, "")
}

// DeleteCheck soft-deletes the check; result history ages out through the
// retention cleaner.
func (mgr *CheckMgr) DeleteCheck(c *gin.Context) {
	check, ok := mgr.ownedCheck(c)
	if !ok {
		return
	}

	if err := mgr.scheduler.RemoveCheck(check.ID); err != nil {
		resputil.Error(c, fmt.Sprintf("unschedule check: %v", err), resputil.NotSpecified)
		return
	}
	if err := mgr.store.SetCheckStatus(c, check.ID, model.CheckStatusDeleted); err != nil {
		resputil.Error(c, fmt.Sprintf("delete check: %v", err), resputil.NotSpecified)
		return
	}
	resputil.Success(c, "")
}

func (mgr *CheckMgr) ListResults(c *gin.Context) {
	check, ok := mgr.ownedCheck(c)
	if !ok {
		return
	}

	results, err := mgr.store.ListResults(c, check.ID, 100)
	if err != nil {
		resputil.Error(c, fmt.Sprintf("list results: %v", err), resputil.NotSpecified)
		return
	}
	resputil.Success(c, results)
}

// ownedCheck resolves the :id parameter to a check owned by the caller.
// Writes the error response itself when resolution fails.
func (mgr *CheckMgr) ownedCheck(c *gin.Context) (*model.Check, bool) {
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
