// Package httpserver runs the admin HTTP listener: health, Prometheus metrics and optional pprof.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coreconfig "github.com/m3rciful/quizbot/core/config"
	"github.com/m3rciful/quizbot/core/logger"
)

// HealthFunc reports readiness details merged into the /healthz body.
type HealthFunc func(ctx context.Context) map[string]any

// Server wraps the gin engine and its http.Server.
type Server struct {
	cfg    coreconfig.HTTPConfig
	engine *gin.Engine
	srv    *http.Server
}

// New builds the handler tree. health may be nil.
func New(cfg coreconfig.HTTPConfig, health HealthFunc) *Server {
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(gin.Recovery())

	e.GET("/healthz", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if health != nil {
			for k, v := range health(c.Request.Context()) {
				body[k] = v
			}
		}
		c.JSON(http.StatusOK, body)
	})
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.Pprof {
		pprof.Register(e, "/debug/pprof")
	}

	return &Server{
		cfg:    cfg,
		engine: e,
		srv: &http.Server{
			Addr:              cfg.Listen,
			Handler:           e,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.HTTP.Info("http listening",
			slog.String("event", "http.listen"),
			slog.String("listen", s.cfg.Listen),
			slog.Bool("pprof", s.cfg.Pprof),
		)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		logger.HTTP.Error("http shutdown failed",
			slog.String("event", "http.shutdown"),
			slog.Any("err", err),
		)
		return err
	}
	return nil
}
