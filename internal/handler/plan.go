package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ankalabs/pulse/dao/model"
	"github.com/ankalabs/pulse/internal/resputil"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewPlanMgr)
}

// PlanMgr serves the plan catalogue for the pricing page.
type PlanMgr struct {
	name string
}

func NewPlanMgr(_ *RegisterConfig) Manager {
	return &PlanMgr{name: "plans"}
}

func (mgr *PlanMgr) GetName() string { return mgr.name }

func (mgr *PlanMgr) RegisterPublic(g *gin.RouterGroup) {
	g.GET("", mgr.ListPlans)
}

func (mgr *PlanMgr) RegisterProtected(_ *gin.RouterGroup) {}

func (mgr *PlanMgr) ListPlans(c *gin.Context) {
	resputil.Success(c, model.AllPlans())
}
