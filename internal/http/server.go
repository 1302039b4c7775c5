package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ochronus/goustream/internal/app"
	"github.com/ochronus/goustream/internal/config"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-ID"

// Server is the upload proxy: it accepts multipart uploads and listing
// requests and forwards them to the streaming API.
type Server struct {
	container *app.Container
	config    *config.Config
	handler   *Handler
	logger    *logrus.Logger
	router    *gin.Engine
	srv       *http.Server
}

// NewServer creates a new HTTP server
func NewServer(container *app.Container) *Server {
	cfg := container.Config

	// Set gin mode based on log level
	if cfg.Loglevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(container.Logger))

	handler := NewHandler(container)

	authorized := router.Group("/", handler.RequireAuth())
	authorized.POST("/channels/:channelID/uploads", handler.Upload)
	authorized.GET("/channels/:channelID/uploads/:fileID", handler.UploadStatus)
	authorized.GET("/channels/:channelID/videos", handler.ListChannelVideos)
	authorized.GET("/users/:userID/playlists", handler.ListPlaylists)

	return &Server{
		container: container,
		config:    cfg,
		handler:   handler,
		logger:    container.Logger,
		router:    router,
	}
}

// requestLogger tags every request with an id and logs it once it is done.
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"request_id": id,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).Round(time.Millisecond),
		}).Info("request")
	}
}

// Start starts the HTTP server with a background context.
func (s *Server) Start() error {
	return s.StartWithContext(context.Background())
}

// StartWithContext starts the HTTP server and shuts down gracefully when the context is canceled.
func (s *Server) StartWithContext(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.Port)
	s.logger.Infof("Starting upload proxy at http://%s", addr)

	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		// Uploads can be long; give them time to finish.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// GetRouter returns the underlying gin router (useful for testing)
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
