// Package http serves the operational sidecar: health probes and metrics.
// Chat traffic never touches this listener.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Checker reports whether one dependency is usable.
type Checker func(ctx context.Context) error

// AdminServer exposes /healthz, /readyz, and /metrics over plain HTTP.
type AdminServer struct {
	srv      *http.Server
	checkers map[string]Checker
	logger   *zap.Logger
}

// NewAdminServer builds the sidecar. Checkers gate readiness only; liveness
// always answers 200 while the process runs.
func NewAdminServer(addr string, checkers map[string]Checker, logger *zap.Logger) *AdminServer {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	a := &AdminServer{
		checkers: checkers,
		logger:   logger,
	}

	engine.GET("/healthz", a.healthz)
	engine.GET("/readyz", a.readyz)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.srv = &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return a
}

func (a *AdminServer) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *AdminServer) readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	failures := gin.H{}
	for name, check := range a.checkers {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}

	if len(failures) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failures": failures})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Start serves until Shutdown. It blocks.
func (a *AdminServer) Start() error {
	a.logger.Info("admin server listening", zap.String("addr", a.srv.Addr))
	if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (a *AdminServer) Shutdown(ctx context.Context) error {
	return a.srv.Shutdown(ctx)
}
