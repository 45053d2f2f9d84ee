// Package status serves a small read-only HTTP surface for health checks.
package status

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Armin-kho/price-drop-bot/internal/logger"
	"github.com/Armin-kho/price-drop-bot/internal/scheduler"
)

const serviceName = "price-drop-bot"

type Counter interface {
	CountProducts(ctx context.Context) (int, error)
	CountUsers(ctx context.Context) (int, error)
}

type CycleReporter interface {
	LastCycle() scheduler.Stats
}

type Server struct {
	counts Counter
	cycles CycleReporter
	log    *logger.Logger
	srv    *http.Server
}

func New(addr string, counts Counter, cycles CycleReporter, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{counts: counts, cycles: cycles, log: log.Component("status")}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	router.GET("/health", s.health)
	router.GET("/stats", s.stats)
	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "took", time.Since(start))
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
	})
}

func (s *Server) stats(c *gin.Context) {
	ctx := c.Request.Context()
	products, err := s.counts.CountProducts(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	users, err := s.counts.CountUsers(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	body := gin.H{
		"products": products,
		"users":    users,
	}
	if s.cycles != nil {
		body["last_cycle"] = s.cycles.LastCycle()
	}
	c.JSON(http.StatusOK, body)
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		s.log.Info("status server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("status server stopped", "err", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
