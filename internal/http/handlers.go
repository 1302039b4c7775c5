package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ochronus/goustream/internal/app"
	"github.com/ochronus/goustream/internal/batch"
	"github.com/ochronus/goustream/internal/config"
	"github.com/ochronus/goustream/internal/paging"
	"github.com/ochronus/goustream/internal/services/api"
	"github.com/ochronus/goustream/internal/services/media"
	"github.com/ochronus/goustream/internal/upload"
	"github.com/sirupsen/logrus"
)

// Handler contains the HTTP handlers of the upload proxy.
type Handler struct {
	config   *config.Config
	media    media.ClientAPI
	uploader batch.Uploader
	logger   *logrus.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(container *app.Container) *Handler {
	return &Handler{
		config:   container.Config,
		media:    container.Media,
		uploader: container.Uploader,
		logger:   container.Logger,
	}
}

// pageResponse is one page of a listing as the proxy returns it.
type pageResponse struct {
	Items   []json.RawMessage `json:"items"`
	HasNext bool              `json:"hasNext"`
	Next    string            `json:"next,omitempty"`
}

func newPageResponse(p *paging.Page) pageResponse {
	next, _ := p.NextLocator()
	return pageResponse{Items: p.Items(), HasNext: p.HasNext(), Next: next}
}

// RequireAuth rejects requests without valid Basic Auth credentials.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.validateUser(c) {
			c.Header("WWW-Authenticate", `Basic realm="goustream"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

// Upload accepts a multipart file and pushes it through the three upload phases.
func (h *Handler) Upload(c *gin.Context) {
	channelID := c.Param("channelID")

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	file, err := header.Open()
	if err != nil {
		h.logger.Errorf("opening multipart file: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	opts := upload.Options{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Protect:     c.DefaultPostForm("protect", h.config.DefaultProtect),
	}
	if opts.Title == "" {
		opts.Title = header.Filename
	}

	src := upload.Source{Name: header.Filename, Reader: file}
	result, err := h.uploader.Upload(c.Request.Context(), channelID, src, opts)
	if err != nil {
		h.logger.WithField("request_id", c.GetString("request_id")).Errorf("upload error: %v", err)
		body := gin.H{"error": err.Error()}
		var uploadErr *upload.Error
		if errors.As(err, &uploadErr) {
			body["phase"] = uploadErr.Phase
			if uploadErr.FileID != "" {
				body["fileId"] = uploadErr.FileID
			}
		}
		c.JSON(http.StatusBadGateway, body)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// UploadStatus reports the processing state of an upload.
func (h *Handler) UploadStatus(c *gin.Context) {
	status, err := h.media.UploadStatus(c.Request.Context(), c.Param("channelID"), c.Param("fileID"))
	if err != nil {
		h.respondAPIError(c, "upload status", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// ListChannelVideos returns the first page of a channel's videos.
func (h *Handler) ListChannelVideos(c *gin.Context) {
	page, err := h.media.ListChannelVideos(c.Request.Context(), c.Param("channelID"))
	if err != nil {
		h.respondAPIError(c, "list videos", err)
		return
	}
	c.JSON(http.StatusOK, newPageResponse(page))
}

// ListPlaylists returns the first page of a user's playlists.
func (h *Handler) ListPlaylists(c *gin.Context) {
	page, err := h.media.ListPlaylists(c.Request.Context(), c.Param("userID"))
	if err != nil {
		h.respondAPIError(c, "list playlists", err)
		return
	}
	c.JSON(http.StatusOK, newPageResponse(page))
}

func (h *Handler) respondAPIError(c *gin.Context, op string, err error) {
	h.logger.Errorf("%s error: %v", op, err)
	status := http.StatusBadGateway
	if code := api.StatusCode(err); code == http.StatusNotFound {
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// validateUser validates the Basic Auth credentials.
func (h *Handler) validateUser(c *gin.Context) bool {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return false
	}

	if !strings.HasPrefix(authHeader, "Basic ") {
		return false
	}

	encoded := strings.TrimPrefix(authHeader, "Basic ")
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}

	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return false
	}

	username := parts[0]
	password := parts[1]

	return username == h.config.Username && password == h.config.Password
}
