package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/picamctl/picamctl/internal/camera"
	"github.com/picamctl/picamctl/internal/service"
)

// CameraHandler serves the live stream and still capture endpoints.
//
// Supported operations:
//   - GET  /api/stream    → multipart MJPEG live stream
//   - POST /api/snapshot  → capture one still
type CameraHandler struct {
	log     *zap.Logger
	stream  *camera.Stream
	capture *service.CaptureService
}

func NewCameraHandler(log *zap.Logger, stream *camera.Stream, capture *service.CaptureService) *CameraHandler {
	return &CameraHandler{
		log:     log.Named("camera"),
		stream:  stream,
		capture: capture,
	}
}

const streamBoundary = "frame"

// Stream handles GET /api/stream. Frames are relayed as a
// multipart/x-mixed-replace body until the client disconnects. A slow
// client skips frames rather than stalling the pipeline.
func (h *CameraHandler) Stream(c *gin.Context) {
	frames, cancel := h.stream.Subscribe(2)
	defer cancel()

	c.Header("Content-Type", "multipart/x-mixed-replace; boundary="+streamBoundary)
	c.Header("Cache-Control", "no-cache, no-store")
	c.Header("Connection", "close")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "streaming unsupported"})
		return
	}

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			_, err := fmt.Fprintf(c.Writer,
				"--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n",
				streamBoundary, len(frame))
			if err == nil {
				_, err = c.Writer.Write(frame)
			}
			if err == nil {
				_, err = c.Writer.WriteString("\r\n")
			}
			if err != nil {
				return // client gone
			}
			flusher.Flush()
		}
	}
}

// Snapshot handles POST /api/snapshot.
//
// Status Codes:
//   - 200 OK → {"filename": "..."}
//   - 409 Conflict → camera busy with an exclusive capture
//   - 504 Gateway Timeout → capture tool hung
func (h *CameraHandler) Snapshot(c *gin.Context) {
	filename, err := h.capture.Snapshot(c.Request.Context())
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"filename": filename})
}

// FrameCount handles GET /api/stream/stats.
func (h *CameraHandler) FrameCount(c *gin.Context) {
	c.Header("X-Frame-Count", strconv.FormatUint(h.stream.FrameCount(), 10))
	c.JSON(http.StatusOK, gin.H{
		"active":      h.stream.Active(),
		"frame_count": h.stream.FrameCount(),
	})
}
