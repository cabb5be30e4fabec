// Package api exposes the engines and the chat assistant over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"warpmine/internal"
	"warpmine/internal/assistant"
	apperrors "warpmine/internal/errors"
	"warpmine/internal/exploration"
	"warpmine/internal/extraction"
	"warpmine/internal/optimize"
	"warpmine/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Dependencies wires the server. A nil engine is reported as disabled.
type Dependencies struct {
	Extraction   *extraction.Simulator
	Exploration  *exploration.Simulator
	Optimization *optimize.Engine
	Assistant    *assistant.Assistant
	History      ports.HistoryPort

	// Seed applies to requests that carry none
	Seed                       *int64
	// MaxConcurrentOptimizations queues runs beyond this many; zero means no cap
	MaxConcurrentOptimizations int

	Version string
	Logger  *zap.Logger
}

// Server is the HTTP front end
type Server struct {
	router  *gin.Engine
	deps    Dependencies
	metrics *Metrics
	hub     *SSEHub
	slots   *semaphore.Weighted
	logger  *zap.Logger
}

// NewServer builds the router. ginMode is passed to gin.SetMode when set.
func NewServer(deps Dependencies, ginMode string) *Server {
	if ginMode != "" {
		gin.SetMode(ginMode)
	}
	if deps.History == nil {
		deps.History = ports.NopHistory{}
	}
	logger := internal.OrNop(deps.Logger).Named("api")

	s := &Server{
		router:  gin.New(),
		deps:    deps,
		metrics: NewMetrics(),
		hub:     NewSSEHub(logger.Named("sse")),
		logger:  logger,
	}
	if deps.MaxConcurrentOptimizations > 0 {
		s.slots = semaphore.NewWeighted(int64(deps.MaxConcurrentOptimizations))
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(
		requestID(),
		recovery(s.logger),
		accessLog(s.logger),
		instrument(s.metrics),
	)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))

	s.router.POST("/chat", s.handleChat)

	sim := s.router.Group("/simulate")
	sim.POST("/extraction", s.handleExtraction)
	sim.POST("/extraction/compare", s.handleCompare)
	sim.POST("/exploration", s.handleExploration)

	s.router.POST("/optimize", s.handleOptimize)
	s.router.POST("/optimize/weighted", s.handleOptimizeWeighted)
	s.router.GET("/optimize/events", s.hub.HandleSSE)

	s.router.GET("/history", s.handleHistory)
	s.router.GET("/history/export", s.handleHistoryExport)

	s.router.NoRoute(func(c *gin.Context) {
		writeError(c, apperrors.NotFound("route "+c.Request.URL.Path))
	})
}

// Handler exposes the router for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server's collectors
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Close ends open progress streams and stops the hub
func (s *Server) Close() {
	s.hub.Close()
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests
// for up to shutdownTimeout
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
