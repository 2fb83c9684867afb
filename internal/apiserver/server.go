package apiserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/caseline/caseline/internal/apiserver/database"
	"github.com/caseline/caseline/internal/apiserver/handler"
	"github.com/caseline/caseline/internal/backend"
	"github.com/caseline/caseline/internal/common/config"
	"github.com/caseline/caseline/internal/realtime"
	"github.com/caseline/caseline/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps bundles the long-lived components the HTTP surface is built from.
// Everything is injected; the server owns none of it except the listener.
type Deps struct {
	Registry    *realtime.Registry
	Broadcaster *realtime.Broadcaster
	Backends    *backend.Registry
	Stats       *backend.StatsTracker
	Coordinator handler.CompletionService
	DB          database.Database
	Metrics     *metrics.Metrics
}

// Server is the HTTP and websocket front of the service.
type Server struct {
	logger *zap.Logger
	srv    *http.Server
}

// NewServer builds the router and binds every handler.
func NewServer(logger *zap.Logger, cfg *config.CaselineConfig, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	if deps.Metrics != nil {
		engine.Use(deps.Metrics.Middleware())
		engine.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	health := handler.NewHealth(deps.Registry, deps.Backends, deps.Stats)
	engine.GET("/health", health.HandleHealth)

	ws := handler.NewWS(logger, deps.Registry, deps.Broadcaster, deps.Coordinator, deps.DB, deps.Metrics)
	engine.GET("/ws", ws.HandleWS)

	rooms := handler.NewRooms(deps.DB)
	completions := handler.NewCompletions(logger, deps.Coordinator, deps.DB, deps.Broadcaster)

	api := engine.Group("/api")
	{
		api.GET("/rooms", rooms.HandleListRooms)
		api.POST("/rooms", rooms.HandleCreateRoom)
		api.GET("/rooms/:id/messages", rooms.HandleGetMessages)
		api.POST("/rooms/:id/archive", rooms.HandleArchiveRoom)
		api.POST("/rooms/:id/completions", completions.HandleCreateCompletion)
		api.DELETE("/rooms/:id/affinity", completions.HandleClearAffinity)
	}

	return &Server{
		logger: logger.Named("apiserver"),
		srv: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: engine,
		},
	}
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("starting http server", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
