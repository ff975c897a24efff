package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"hoisting/internal/events"
	"hoisting/internal/models"
)

const (
	requestIDHeader = "X-Request-ID"

	defaultPublishTimeout = 2 * time.Second
)

// Store is the persistence the handlers need. *storage.Storage implements it.
type Store interface {
	SaveImage(ctx context.Context, img *models.Image) error
	GetImage(ctx context.Context, id int64) (*models.Image, error)
	FindExact(ctx context.Context, width, length int) (*models.Image, error)
	FindNearest(ctx context.Context, width, length int) (*models.Image, error)
	SaveVote(ctx context.Context, v *models.Vote) error
	CountVotes(ctx context.Context, imageID int64) (int64, error)
	Ping(ctx context.Context) error
}

type Server struct {
	cfg       *models.Config
	router    *gin.Engine
	httpSrv   *http.Server
	store     Store
	publisher events.Publisher

	// bounds how long a handler waits on the event side channel
	publishTimeout time.Duration
}

func NewServer(cfg *models.Config, store Store, publisher events.Publisher) (*Server, error) {
	const op = "server.NewServer"

	r := gin.New()
	r.Use(requestLogger(), gin.Recovery())
	r.MaxMultipartMemory = cfg.MaxUploadBytes
	if cfg.TrustedProxies != nil {
		if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if publisher == nil {
		publisher = events.Nop{}
	}
	s := &Server{
		cfg:            cfg,
		router:         r,
		store:          store,
		publisher:      publisher,
		publishTimeout: defaultPublishTimeout,
	}

	r.GET("/", s.handleRoot)
	r.GET("/healthz", s.handleHealth)
	r.GET("/upload", s.handleUploadForm)
	r.POST("/upload", s.handleUpload)
	r.GET("/resolution/:width/:height", s.handleGetByResolution)
	r.GET("/image/:id", s.handleGetImage)
	r.GET("/image/:id/votes", s.handleCountVotes)
	r.POST("/image/:id/vote", s.handleVote)
	r.GET("/image/:id/vote", s.handleVote)

	s.httpSrv = &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks until the server stops. A clean shutdown returns nil.
func (s *Server) Start() error {
	slog.Info("http server listening", "addr", s.cfg.ServerAddr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"messages": popFlash(c)})
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		logFor(c).Error("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) publish(c *gin.Context, e events.Event) {
	e.At = time.Now().UTC()

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, e); err != nil {
		logFor(c).Warn("failed to publish event", "type", e.Type, "image_id", e.ImageID, "error", err)
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set("request_id", reqID)
		c.Header(requestIDHeader, reqID)

		c.Next()

		slog.Info("request completed",
			"request_id", reqID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"ip", c.ClientIP(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func logFor(c *gin.Context) *slog.Logger {
	return slog.With("request_id", c.GetString("request_id"))
}

func internalError(c *gin.Context, op string, err error) {
	logFor(c).Error("request failed", "op", op, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
}
