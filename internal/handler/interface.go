package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ankalabs/pulse/dao"
	"github.com/ankalabs/pulse/pkg/config"
	"github.com/ankalabs/pulse/pkg/scheduler"
)

type Manager interface {
	GetName() string
	RegisterPublic(group *gin.RouterGroup)
	RegisterProtected(group *gin.RouterGroup)
}

// RegisterConfig carries the shared dependencies every manager may need.
type RegisterConfig struct {
	Store     *dao.Store
	Scheduler *scheduler.Scheduler
	Config    *config.Config
}

type RegisterFunc func(conf *RegisterConfig) Manager

// Registers collects the manager constructors; each handler file appends
// its own in init().
var Registers []RegisterFunc
