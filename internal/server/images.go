package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"hoisting/internal/events"
	"hoisting/internal/models"
	"hoisting/internal/processor"
	"hoisting/internal/storage"
)

// uploadView is the submission/confirmation view.
type uploadView struct {
	Saved bool   `json:"saved"`
	ID    *int64 `json:"id"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleUploadForm(c *gin.Context) {
	c.JSON(http.StatusOK, uploadView{})
}

func (s *Server) handleUpload(c *gin.Context) {
	const op = "server.handleUpload"

	// leave room for the multipart envelope around the file
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes+1<<20)

	file, err := c.FormFile("photo")
	if err != nil {
		invalidUpload(c, "photo is required")
		return
	}
	if file.Size == 0 {
		invalidUpload(c, "photo is empty")
		return
	}
	if file.Size > s.cfg.MaxUploadBytes {
		invalidUpload(c, fmt.Sprintf("photo exceeds %d bytes", s.cfg.MaxUploadBytes))
		return
	}

	src, err := file.Open()
	if err != nil {
		internalError(c, op, err)
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		internalError(c, op, err)
		return
	}

	width, height, err := processor.Dimensions(data)
	if err != nil {
		logFor(c).Info("rejected upload", "filename", file.Filename, "error", err)
		invalidUpload(c, "photo is not a valid image")
		return
	}
	if width > s.cfg.MaxDimension || height > s.cfg.MaxDimension {
		logFor(c).Info("rejected upload", "filename", file.Filename, "width", width, "height", height)
		invalidUpload(c, fmt.Sprintf("photo dimensions must not exceed %d", s.cfg.MaxDimension))
		return
	}

	img := models.Image{
		Photo:   data,
		Width:   width,
		Length:  height,
		Private: parseFlag(c.PostForm("private")),
	}
	if err := s.store.SaveImage(c.Request.Context(), &img); err != nil {
		internalError(c, op, err)
		return
	}

	logFor(c).Info("image saved", "image_id", img.ID, "width", img.Width, "length", img.Length, "private", img.Private)
	s.publish(c, events.Event{Type: events.TypeImageUploaded, ImageID: img.ID})

	c.JSON(http.StatusOK, uploadView{Saved: true, ID: &img.ID})
}

func invalidUpload(c *gin.Context, reason string) {
	c.JSON(http.StatusBadRequest, uploadView{Error: reason})
}

// handleGetByResolution serves the earliest exact match as stored, or the
// nearest image resized to the request as PNG.
func (s *Server) handleGetByResolution(c *gin.Context) {
	const op = "server.handleGetByResolution"

	width, ok := positiveParam(c, "width")
	if !ok {
		notFound(c)
		return
	}
	height, ok := positiveParam(c, "height")
	if !ok {
		notFound(c)
		return
	}
	if width > s.cfg.MaxDimension || height > s.cfg.MaxDimension {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("resolution must not exceed %d", s.cfg.MaxDimension)})
		return
	}

	ctx := c.Request.Context()
	img, err := s.store.FindExact(ctx, width, height)
	switch {
	case err == nil:
		c.Data(http.StatusOK, "image/jpeg", img.Photo)
		return
	case !errors.Is(err, storage.ErrNotFound):
		internalError(c, op, err)
		return
	}

	img, err = s.store.FindNearest(ctx, width, height)
	if errors.Is(err, storage.ErrNotFound) {
		notFound(c)
		return
	}
	if err != nil {
		internalError(c, op, err)
		return
	}

	resized, err := processor.Resize(img.Photo, width, height)
	if err != nil {
		internalError(c, op, fmt.Errorf("image %d: %w", img.ID, err))
		return
	}
	c.Data(http.StatusOK, "image/png", resized)
}

// handleGetImage returns the stored bytes labelled as JPEG whatever the
// actual encoding is.
func (s *Server) handleGetImage(c *gin.Context) {
	const op = "server.handleGetImage"

	img, ok := s.lookupImage(c, op)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "image/jpeg", img.Photo)
}

// lookupImage resolves the :id param. On failure it has already written the
// response.
func (s *Server) lookupImage(c *gin.Context, op string) (*models.Image, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		notFound(c)
		return nil, false
	}

	img, err := s.store.GetImage(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		notFound(c)
		return nil, false
	}
	if err != nil {
		internalError(c, op, err)
		return nil, false
	}
	return img, true
}

func positiveParam(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// parseFlag reads a checkbox style form value.
func parseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}
