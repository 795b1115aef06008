// Package httpapi exposes the sync protocol over REST with gin. It shares
// the JSON wire contract and validation of the gRPC surface.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/donets/jtrack/internal/domain"
	"github.com/donets/jtrack/internal/logging"
	"github.com/donets/jtrack/internal/protocol"
	"github.com/donets/jtrack/internal/server/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SyncAPI is the engine surface the HTTP handlers need.
type SyncAPI interface {
	Pull(ctx context.Context, p services.Principal, req *protocol.PullRequest) (*protocol.PullResponse, error)
	Push(ctx context.Context, p services.Principal, req *protocol.PushRequest) (*protocol.PushResponse, error)
	AttachmentDownloadURL(ctx context.Context, p services.Principal, locationID, attachmentID string) (string, error)
	Role(ctx context.Context, p services.Principal, locationID string) (domain.Role, error)
}

type Config struct {
	Address      string
	JWTSecret    string
	AllowOrigins []string
}

func NewRouter(cfg Config, api SyncAPI, logger logging.Logger) *gin.Engine {
	h := &Handler{sync: api}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))
	if len(cfg.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: cfg.AllowOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}

	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	v1.Use(Auth([]byte(cfg.JWTSecret)))
	{
		v1.POST("/sync/pull", h.Pull)
		v1.POST("/sync/push", h.Push)
		v1.GET("/status-transitions", h.StatusTransitions)

		loc := v1.Group("/locations/:locationId")
		loc.Use(RequireMembership(api))
		loc.GET("/attachments/:attachmentId/url", h.AttachmentURL)
	}
	return r
}

// Server runs the router until its context is canceled.
type Server struct {
	srv    *http.Server
	logger logging.Logger
}

func NewServer(cfg Config, api SyncAPI, logger logging.Logger) *Server {
	logger = logger.With("module", "http_server")
	return &Server{
		srv: &http.Server{
			Addr:              cfg.Address,
			Handler:           NewRouter(cfg, api, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
