package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Lockstep/internal/adapters/signal"
	"github.com/dkeye/Lockstep/internal/app"
	"github.com/dkeye/Lockstep/internal/config"
)

// SetupRouter wires the HTTP surface:
// - WebSocket upgrade at /api/ws
// - GET /api/rooms for a read-only room listing
// - /healthz for probes
func SetupRouter(ctx context.Context, cfg *config.Config, coord *app.Coordinator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": coord.Registry.Count()})
	})

	api := r.Group("/api")

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": coord.Rooms.List()})
	})

	ctrl := signal.NewSignalWSController(coord, cfg)
	api.GET("/ws", func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
