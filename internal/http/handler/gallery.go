package handler

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/picamctl/picamctl/internal/service"
)

// GalleryHandler serves and manages captured media.
//
// Supported operations:
//   - GET    /api/gallery                         → list captures (?filter=image|video|gif)
//   - GET    /api/captures/:filename              → serve a capture
//   - GET    /api/thumbs/:filename                → serve a thumbnail
//   - DELETE /api/gallery/:filename               → delete a capture
//   - GET    /api/timelapses                      → list timelapse sessions
//   - GET    /api/timelapses/:session             → session detail with frame list
//   - GET    /api/timelapses/:session/frames/:frame → serve a session frame
//   - DELETE /api/timelapses/:session             → delete a session and its outputs
type GalleryHandler struct {
	log      *zap.Logger
	gallery  *service.GalleryService
	thumbDir string
}

func NewGalleryHandler(log *zap.Logger, gallery *service.GalleryService, thumbDir string) *GalleryHandler {
	return &GalleryHandler{
		log:      log.Named("gallery"),
		gallery:  gallery,
		thumbDir: thumbDir,
	}
}

// List handles GET /api/gallery. Adds `X-Total-Count`.
func (h *GalleryHandler) List(c *gin.Context) {
	items, err := h.gallery.List(c.Request.Context(), c.Query("filter"))
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.Header("X-Total-Count", strconv.Itoa(len(items)))
	c.JSON(http.StatusOK, items)
}

// Serve handles GET /api/captures/:filename.
func (h *GalleryHandler) Serve(c *gin.Context) {
	path, err := h.gallery.Resolve(c.Param("filename"))
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.File(path)
}

// ServeThumb handles GET /api/thumbs/:filename.
func (h *GalleryHandler) ServeThumb(c *gin.Context) {
	filename := c.Param("filename")
	if filename == "" || filepath.Base(filename) != filename {
		respondErr(c, h.log, service.ErrNotInGallery)
		return
	}
	c.File(filepath.Join(h.thumbDir, filename))
}

// Delete handles DELETE /api/gallery/:filename.
func (h *GalleryHandler) Delete(c *gin.Context) {
	if err := h.gallery.Delete(c.Request.Context(), c.Param("filename")); err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// ListSessions handles GET /api/timelapses.
func (h *GalleryHandler) ListSessions(c *gin.Context) {
	sessions, err := h.gallery.ListSessions(c.Request.Context())
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.Header("X-Total-Count", strconv.Itoa(len(sessions)))
	c.JSON(http.StatusOK, sessions)
}

// Session handles GET /api/timelapses/:session.
func (h *GalleryHandler) Session(c *gin.Context) {
	detail, err := h.gallery.Session(c.Request.Context(), c.Param("session"))
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// ServeSessionFrame handles GET /api/timelapses/:session/frames/:frame.
func (h *GalleryHandler) ServeSessionFrame(c *gin.Context) {
	path, err := h.gallery.ResolveSessionFrame(c.Param("session"), c.Param("frame"))
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.File(path)
}

// DeleteSession handles DELETE /api/timelapses/:session.
func (h *GalleryHandler) DeleteSession(c *gin.Context) {
	if err := h.gallery.DeleteSession(c.Request.Context(), c.Param("session")); err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// Usage handles GET /api/disk.
func (h *GalleryHandler) Usage(c *gin.Context) {
	du, err := h.gallery.Usage()
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, du)
}
