// Package api is the HTTP boundary: request validation, replay
// suppression and hand-off to the background queue. Identity is
// checked before anything else; accepted work is acknowledged
// immediately and runs detached.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ggokuldas06/tds-project1/internal/cache"
	"github.com/ggokuldas06/tds-project1/internal/config"
	"github.com/ggokuldas06/tds-project1/internal/logging"
	"github.com/ggokuldas06/tds-project1/pkg/models"
)

// Version reported by the health endpoints.
const Version = "1.0.0"

// Submitter enqueues accepted requests for background processing.
type Submitter interface {
	Submit(req *models.TaskRequest) error
}

// RunLister reads recorded runs for the task status endpoint.
type RunLister interface {
	RunsForTask(ctx context.Context, task string) ([]models.TaskRun, error)
}

// Server represents the API server
type Server struct {
	cfg    *config.Config
	pool   Submitter
	dedupe cache.Store
	runs   RunLister
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, pool Submitter, dedupe cache.Store, runs RunLister) *Server {
	return &Server{
		cfg:    cfg,
		pool:   pool,
		dedupe: dedupe,
		runs:   runs,
	}
}

// Health endpoint - returns quickly for load balancer health checks
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:  "healthy",
		Version: Version,
	})
}

// Build accepts a task request. Identity is verified first (email,
// then secret), replays are acknowledged without re-processing, and
// the 200 goes out before any pipeline work starts.
func (s *Server) Build(c *gin.Context) {
	var req models.TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	if req.Email != s.cfg.StudentEmail {
		c.JSON(http.StatusForbidden, gin.H{"detail": "Email does not match configured student email"})
		return
	}

	if req.Secret != s.cfg.StudentSecret {
		c.JSON(http.StatusForbidden, gin.H{"detail": "Invalid secret"})
		return
	}

	firstSeen, err := s.dedupe.MarkSeen(c.Request.Context(), req.Task, req.Round, req.Nonce)
	if err != nil {
		logging.L().Warn("Dedupe check errored", zap.Error(err))
	}
	if !firstSeen {
		logging.L().Info("Duplicate delivery acknowledged",
			zap.String("task", req.Task),
			zap.Int("round", req.Round),
			zap.String("nonce", req.Nonce))
		c.JSON(http.StatusOK, models.TaskResponse{
			Status:  "accepted",
			Message: fmt.Sprintf("Task %s round %d already received", req.Task, req.Round),
		})
		return
	}

	if err := s.pool.Submit(&req); err != nil {
		// The triple was claimed above; release it so the sender's
		// retry of this exact delivery is enqueued instead of being
		// acknowledged as already handled.
		if err := s.dedupe.Forget(c.Request.Context(), req.Task, req.Round, req.Nonce); err != nil {
			logging.L().Warn("Could not release dedupe entry", zap.Error(err))
		}
		logging.L().Warn("Task rejected, queue is full",
			zap.String("task", req.Task),
			zap.Int("round", req.Round))
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Server is at capacity, retry later"})
		return
	}

	logging.L().Info("Task accepted",
		zap.String("task", req.Task),
		zap.Int("round", req.Round),
		zap.String("nonce", req.Nonce))

	c.JSON(http.StatusOK, models.TaskResponse{
		Status:  "accepted",
		Message: fmt.Sprintf("Task %s received and processing started", req.Task),
	})
}

// TaskRuns returns the recorded runs for a task id, oldest round first.
func (s *Server) TaskRuns(c *gin.Context) {
	task := c.Param("task")

	runs, err := s.runs.RunsForTask(c.Request.Context(), task)
	if err != nil {
		logging.L().Error("Could not read task runs", zap.String("task", task), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "could not read task runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task":  task,
		"count": len(runs),
		"runs":  runs,
	})
}
