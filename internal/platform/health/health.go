// Package health exposes liveness and readiness endpoints.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Checker is a named dependency probe.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckFunc adapts a function into a Checker.
type CheckFunc struct {
	Label string
	Fn    func(ctx context.Context) error
}

// Name returns the probe label.
func (f CheckFunc) Name() string { return f.Label }

// Check runs the probe.
func (f CheckFunc) Check(ctx context.Context) error { return f.Fn(ctx) }

// Handler serves /health and /ready.
type Handler struct {
	service  string
	checkers []Checker
}

// NewHandler creates a Handler that always probes the database plus any extra checkers.
func NewHandler(db *gorm.DB, service string, extra ...Checker) *Handler {
	checkers := make([]Checker, 0, len(extra)+1)
	if db != nil {
		checkers = append(checkers, CheckFunc{Label: "database", Fn: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}})
	}
	checkers = append(checkers, extra...)
	return &Handler{service: service, checkers: checkers}
}

// RegisterRoutes mounts the probes on the router root.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Live)
	r.GET("/ready", h.Ready)
}

// Live reports that the process is serving.
func (h *Handler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": h.service})
}

// Ready reports 503 if any dependency probe fails.
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.checkers))
	for _, chk := range h.checkers {
		if err := chk.Check(ctx); err != nil {
			checks[chk.Name()] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[chk.Name()] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	c.JSON(status, gin.H{"status": state, "service": h.service, "checks": checks})
}
