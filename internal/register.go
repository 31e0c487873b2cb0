package internal

import (
	"net/http"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ankalabs/pulse/internal/handler"
	"github.com/ankalabs/pulse/internal/middleware"
	"github.com/ankalabs/pulse/internal/util"
	"github.com/ankalabs/pulse/pkg/logutils"
	"github.com/ankalabs/pulse/pkg/metrics"
)

type Backend struct {
	R *gin.Engine
}

// Register builds the HTTP surface: health, metrics, and every handler
// manager's public and protected routes.
func Register(conf *handler.RegisterConfig) *Backend {
	b := &Backend{R: gin.Default()}

	// Enable CORS for the local frontend in debug mode
	if gin.Mode() == gin.DebugMode {
		if fe := os.Getenv("PULSE_FE_PORT"); fe != "" {
			corsConf := cors.DefaultConfig()
			corsConf.AllowOrigins = []string{"http://localhost:" + fe}
			b.R.Use(cors.New(corsConf))
		}
	}

	b.R.GET("/v1/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	b.R.GET("/metrics", gin.WrapH(metrics.Handler()))

	tokenMgr := util.NewTokenManager(conf.Config.Auth.AccessTokenSecret)

	publicRouter := b.R.Group("/v1")
	protectedRouter := b.R.Group("/v1")
	protectedRouter.Use(middleware.AuthProtected(tokenMgr))

	for _, register := range handler.Registers {
		mgr := register(conf)
		mgr.RegisterPublic(publicRouter.Group(mgr.GetName()))
		mgr.RegisterProtected(protectedRouter.Group(mgr.GetName()))
		logutils.Log.Infof("Registered manager: %s", mgr.GetName())
	}

	return b
}
