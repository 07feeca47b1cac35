// Package httpapi implements the optional, read-only operator surface of
// §6: liveness, a peek at the queue head, and processing counters. It is a
// thin view over the storage gateway — component G of §2 — and never
// mutates anything the job controller depends on.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"video-worker/internal/cache"
	"video-worker/internal/gateway"
)

const defaultPeekLimit = 50
const shutdownTimeout = 5 * time.Second

// Server exposes GET /healthz, GET /jobs/peek and GET /stats per §6.
type Server struct {
	Storage gateway.Storage
	// StatsCache, if non-nil, is consulted before Storage.Stats and
	// populated after a miss, per addition M. A nil cache simply means
	// every /stats call reaches the database directly.
	StatsCache *cache.StatsCache
}

// Engine builds a gin.Engine with the three §6 routes wired, plus the
// standard logger/recovery middleware the teacher's routers always carry.
func (s *Server) Engine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())

	engine.GET("/healthz", s.healthz)
	engine.GET("/jobs/peek", s.peekJobs)
	engine.GET("/stats", s.stats)

	return engine
}

func (s *Server) healthz(c *gin.Context) {
	if err := s.Storage.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": "healthy"})
}

func (s *Server) peekJobs(c *gin.Context) {
	jobs, err := s.Storage.PeekQueue(c.Request.Context(), defaultPeekLimit)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending_jobs": len(jobs), "jobs": jobs})
}

func (s *Server) stats(c *gin.Context) {
	ctx := c.Request.Context()

	if s.StatsCache != nil {
		if cached, ok := s.StatsCache.Get(ctx); ok {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	stats, err := s.Storage.Stats(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if s.StatsCache != nil {
		s.StatsCache.Set(ctx, stats)
	}
	c.JSON(http.StatusOK, stats)
}

// Run starts the HTTP server on addr and blocks until ctx is cancelled,
// then shuts it down gracefully. Mirrors the teacher's app.Run() shutdown
// shape: a background ListenAndServe paired with a context-scoped
// Shutdown call.
func Run(ctx context.Context, addr string, engine *gin.Engine) error {
	srv := &http.Server{Addr: addr, Handler: engine}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
