// Package control serves the stream side channel: stream headers for
// receivers that join late, live statistics and a stop request.
//
// # Routes
//
//	GET  /api/v1/status    JSON pipeline statistics
//	GET  /api/v1/headers   codec headers (application/octet-stream), 404 when not open
//	POST /api/v1/stop      stop the stream
//	GET  /ws               WebSocket: one binary headers message, then JSON status
package control

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/framecast/pipeline"
)

// DefaultStatusInterval is how often WebSocket clients receive status.
const DefaultStatusInterval = time.Second

// Pipeline is the view of the stream the side channel needs.
type Pipeline interface {
	Stats() pipeline.Stats
	Headers() []byte
	Stop() error
	Finished() <-chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithStatusInterval sets the WebSocket status period.
func WithStatusInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.interval = d
		}
	}
}

// Server is the HTTP side channel of one pipeline.
type Server struct {
	pipeline Pipeline
	router   *gin.Engine
	interval time.Duration
	upgrader websocket.Upgrader
	srv      *http.Server
}

// NewServer builds the router for p.
func NewServer(p Pipeline, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		pipeline: p,
		interval: DefaultStatusInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	api := router.Group("/api/v1")
	api.GET("/status", s.handleStatus)
	api.GET("/headers", s.handleHeaders)
	api.POST("/stop", s.handleStop)
	router.GET("/ws", s.handleWebSocket)

	s.router = router
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logrus.WithFields(logrus.Fields{
		"function": "Server.ListenAndServe",
		"addr":     addr,
	}).Info("Control server listening")

	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops a server started with ListenAndServe.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logrus.WithFields(logrus.Fields{
			"function": "control",
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"latency":  time.Since(start).String(),
		}).Debug("Control request")
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.pipeline.Stats())
}

func (s *Server) handleHeaders(c *gin.Context) {
	headers := s.pipeline.Headers()
	if len(headers) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "encoder not open"})
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", headers)
}

func (s *Server) handleStop(c *gin.Context) {
	if err := s.pipeline.Stop(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleStop",
			"error":    err.Error(),
		}).Warn("Stop reported an error")
		c.JSON(http.StatusInternalServerError, gin.H{"stopped": true, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": true})
}
