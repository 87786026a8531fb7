// Package web exposes the transcription pipeline over HTTP: job creation and
// monitoring, live progress streaming, speaker naming, and session browsing.
package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/dndscribe/scribe/internal/config"
	"github.com/dndscribe/scribe/internal/jobs"
	"github.com/dndscribe/scribe/internal/logger"
	"github.com/dndscribe/scribe/internal/progress"
	"github.com/dndscribe/scribe/internal/recap"
	"github.com/dndscribe/scribe/internal/session"
	"github.com/dndscribe/scribe/internal/vocab"
	"github.com/dndscribe/scribe/internal/wiki"
)

// App bundles the services the web layer exposes. Recaps and Pusher may be
// nil when the corresponding feature is not configured; the handlers respond
// with a clear error instead of panicking.
type App struct {
	Manager     *jobs.Manager
	Store       *session.Store
	Broadcaster *progress.Broadcaster
	Recaps      *recap.Generator
	Pusher      *wiki.Pusher
	Vocabulary  *vocab.Store

	RecordingsDir string
	Output        config.OutputConfig
}

// Server is the HTTP server for the web API, backed by Gin.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	app        App
	log        *logger.Logger
}

// New creates the web server and registers all routes.
func New(cfg config.ServerConfig, app App) *Server {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(recovery())
	engine.Use(requestID())
	engine.Use(requestLogger())

	s := &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler: engine,
			// Uploads and SSE streams are long-lived; only reads are bounded.
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		engine: engine,
		app:    app,
		log:    logger.WithComponent("web"),
	}
	s.registerRoutes()
	return s
}

// Engine returns the underlying Gin engine, used by handler tests.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Start binds the port and begins serving. It returns once the listener is
// bound; serving continues in a goroutine.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("web server: bind %s: %w", s.httpServer.Addr, err)
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("server error", logger.Fields("error", err.Error()))
		}
	}()

	s.log.Info("web server started", logger.Fields("addr", s.httpServer.Addr))
	return nil
}

// Stop gracefully shuts down the server with a 5-second deadline.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("web server: shutdown: %w", err)
	}
	s.log.Info("web server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.health)

	api := s.engine.Group("/api")
	{
		api.POST("/jobs", s.createJob)
		api.GET("/jobs", s.listJobs)
		api.GET("/jobs/:id", s.getJob)
		api.GET("/jobs/:id/events", s.streamJobEvents)
		api.POST("/jobs/:id/speakers", s.submitSpeakers)

		api.GET("/sessions", s.listSessions)
		api.GET("/sessions/:id", s.getSession)
		api.POST("/sessions/:id/speakers", s.updateSessionSpeakers)
		api.POST("/sessions/:id/recap", s.regenerateRecap)
		api.POST("/sessions/:id/push", s.pushSession)
		api.GET("/sessions/:id/files", s.listSessionFiles)
		api.GET("/sessions/:id/download/:filename", s.downloadSessionFile)

		api.GET("/recordings", s.listRecordings)
		api.GET("/vocabulary", s.getVocabulary)
		api.PUT("/vocabulary", s.updateVocabulary)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "scribe"})
}
