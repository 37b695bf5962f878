package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/picamctl/picamctl/internal/http/dto"
	"github.com/picamctl/picamctl/internal/media"
	"github.com/picamctl/picamctl/internal/service"
)

// TimelapseHandler drives timelapse sessions and their compilation.
//
// Supported operations:
//   - POST /api/timelapse/start    → begin a session
//   - POST /api/timelapse/stop     → cancel the session
//   - GET  /api/timelapse/status   → worker status
//   - POST /api/compile/:session   → assemble mp4/gif
//   - GET  /api/compile/:session   → compilation status
type TimelapseHandler struct {
	log      *zap.Logger
	capture  *service.CaptureService
	compiler *media.Compiler
	spawn    media.Spawner
}

func NewTimelapseHandler(log *zap.Logger, capture *service.CaptureService, compiler *media.Compiler, spawn media.Spawner) *TimelapseHandler {
	return &TimelapseHandler{
		log:      log.Named("timelapse"),
		capture:  capture,
		compiler: compiler,
		spawn:    spawn,
	}
}

// Start handles POST /api/timelapse/start.
func (h *TimelapseHandler) Start(c *gin.Context) {
	var req dto.TimelapseStart
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	sessionID, err := h.capture.StartTimelapse(c.Request.Context(),
		time.Duration(req.IntervalSec)*time.Second,
		time.Duration(req.DurationSec)*time.Second)
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID})
}

// Stop handles POST /api/timelapse/stop.
func (h *TimelapseHandler) Stop(c *gin.Context) {
	if err := h.capture.StopTimelapse(); err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "timelapse stopping"})
}

// Status handles GET /api/timelapse/status.
func (h *TimelapseHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.capture.TimelapseStatus())
}

// Compile handles POST /api/compile/:session?format=mp4|gif.
func (h *TimelapseHandler) Compile(c *gin.Context) {
	format := c.DefaultQuery("format", "mp4")

	status, err := h.compiler.Start(c.Param("session"), format, h.spawn)
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusAccepted, status)
}

// CompileStatus handles GET /api/compile/:session.
func (h *TimelapseHandler) CompileStatus(c *gin.Context) {
	status, err := h.compiler.Status(c.Param("session"))
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
