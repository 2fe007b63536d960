// Package api exposes ingest, stage triggers and read endpoints over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/ppiankov/adveritas/internal/logger"
	"github.com/ppiankov/adveritas/internal/pipeline"
)

// DefaultMaxUploadBytes caps multipart audio uploads
const DefaultMaxUploadBytes = 200 << 20

// Config configures the router
type Config struct {
	ServiceName    string
	Version        string
	MaxUploadBytes int64
	Tracing        bool
}

// Server holds the handlers and the gin engine
type Server struct {
	orch   *pipeline.Orchestrator
	cfg    Config
	log    *logger.Logger
	engine *gin.Engine
}

// New builds the router around an orchestrator
func New(orch *pipeline.Orchestrator, cfg Config, log *logger.Logger) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "adveritas"
	}
	s := &Server{orch: orch, cfg: cfg, log: logger.OrNop(log).With("service", "API")}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())
	if s.cfg.Tracing {
		r.Use(otelgin.Middleware(s.cfg.ServiceName))
	}
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type", "X-Requested-With"},
		MaxAge:          12 * time.Hour,
	}))

	r.GET("/", s.index)
	r.GET("/health", s.health)

	videos := r.Group("/videos")
	{
		videos.POST("/ingest", s.ingestUpload)
		videos.POST("/ingest_url", s.ingestURL)
		videos.GET("/:id", s.getVideo)
		videos.GET("/:id/segments", s.listSegments)
		videos.POST("/:id/transcribe", s.triggerTranscription)
	}

	claims := r.Group("/claims")
	{
		claims.GET("/video/:id", s.listClaims)
		claims.POST("/video/:id/extract", s.triggerExtraction)
		claims.GET("/:id", s.getClaim)
	}

	ev := r.Group("/evidence")
	{
		ev.GET("/claim/:id", s.listEvidence)
		ev.POST("/claim/:id/fetch", s.triggerEvidence)
	}

	verdicts := r.Group("/verdicts")
	{
		verdicts.GET("/claim/:id", s.latestVerdict)
		verdicts.GET("/claim/:id/history", s.verdictHistory)
		verdicts.POST("/claim/:id/generate", s.triggerVerdict)
	}
	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// ListenAndServe serves until ctx is cancelled, then drains connections
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("http server stopped")
	return nil
}
