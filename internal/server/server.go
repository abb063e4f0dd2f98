// Package server exposes the broker over HTTP: a synchronous batch endpoint
// that answers with the correlation token, and a per-session event stream
// that relays progress markers and the finished result.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hellooo-cards/iconbridge/internal/bus"
	"github.com/hellooo-cards/iconbridge/internal/common/cnst"
	"github.com/hellooo-cards/iconbridge/internal/common/config"
	"github.com/hellooo-cards/iconbridge/internal/common/dto"
	"github.com/hellooo-cards/iconbridge/internal/session"
	"github.com/hellooo-cards/iconbridge/pkg/metrics"
	"github.com/hellooo-cards/iconbridge/pkg/version"
)

// BatchHandler answers batch requests synchronously.
type BatchHandler interface {
	HandleBatchRequest(ctx context.Context, req *dto.BatchRequest) *dto.Ack
}

// Server is the HTTP front-end for the icon broker.
type Server struct {
	logger   *zap.Logger
	broker   BatchHandler
	bus      bus.Bus
	registry session.Registry
	metrics  *metrics.Metrics
	cfg      config.ServerConfig

	router *gin.Engine
	srv    *http.Server
}

// New creates the HTTP server. metrics may be nil; the /metrics route and
// the middleware are only mounted when it is set.
func New(logger *zap.Logger, broker BatchHandler, b bus.Bus, registry session.Registry, m *metrics.Metrics, cfg config.ServerConfig) *Server {
	s := &Server{
		logger:   logger.Named("server"),
		broker:   broker,
		bus:      b,
		registry: registry,
		metrics:  m,
		cfg:      cfg,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	if m != nil {
		router.Use(m.Middleware())
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	router.GET("/health", s.handleHealth)

	api := router.Group("/api")
	{
		api.POST("/icons", s.handleBatch)
		api.GET("/icons/:sessionId/events", s.handleEvents)
		api.GET("/sessions", s.handleSessions)
	}

	s.router = router
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}
	return s
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.srv.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.Get(),
	})
}

// handleBatch accepts a batch request and answers with the ack. The fetch
// loop runs in the background; callers follow it on the event stream.
func (s *Server) handleBatch(c *gin.Context) {
	var req dto.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Warn("invalid batch request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.AckFailed(cnst.ReasonMissingAccounts))
		return
	}

	ack := s.broker.HandleBatchRequest(c.Request.Context(), &req)
	if !ack.OK() {
		c.JSON(http.StatusBadRequest, ack)
		return
	}
	c.JSON(http.StatusOK, ack)
}

func (s *Server) handleSessions(c *gin.Context) {
	sessions, err := s.registry.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// sseEvent is one frame of the event stream.
type sseEvent struct {
	event string
	data  any
}

// handleEvents streams a session's progress markers and its final result as
// server-sent events. The stream ends after the result frame; messages that
// belong to other sessions are passed over, never consumed on their behalf.
func (s *Server) handleEvents(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if _, err := s.registry.Get(c.Request.Context(), sessionID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": session.ErrSessionNotFound.Error()})
		return
	}

	sub, err := s.bus.Subscribe(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer sub.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			ev, done := s.eventFor(msg, sessionID)
			if ev == nil {
				continue
			}
			if err := writeSSE(c.Writer, ev); err != nil {
				s.logger.Debug("event stream write failed",
					zap.String("session", sessionID),
					zap.Error(err))
				return
			}
			if done {
				return
			}
		}
	}
}

// eventFor translates a bus message into an SSE frame for the session, or
// nil if the message is not addressed to it. done is true for the result
// frame that terminates the stream.
func (s *Server) eventFor(msg *bus.Message, sessionID string) (*sseEvent, bool) {
	switch msg.Topic {
	case cnst.TopicIconsProgress:
		var p dto.Progress
		if msg.Decode(&p) != nil || p.SessionID != sessionID {
			return nil, false
		}
		return &sseEvent{event: "progress", data: p}, false
	case cnst.TopicIconsResult:
		var r dto.BatchResult
		if msg.Decode(&r) != nil || r.SessionID != sessionID {
			return nil, false
		}
		return &sseEvent{event: "result", data: r}, true
	default:
		return nil, false
	}
}

func writeSSE(w gin.ResponseWriter, ev *sseEvent) error {
	payload, err := json.Marshal(ev.data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.event, payload); err != nil {
		return err
	}
	w.Flush()
	return nil
}
