package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/picamctl/picamctl/internal/service"
)

// RecordingHandler drives manual two-stage recordings.
//
// Supported operations:
//   - POST /api/recording/start → begin recording
//   - POST /api/recording/stop  → finalize the active recording
//   - GET  /api/recording       → current recording state
type RecordingHandler struct {
	log     *zap.Logger
	capture *service.CaptureService
}

func NewRecordingHandler(log *zap.Logger, capture *service.CaptureService) *RecordingHandler {
	return &RecordingHandler{
		log:     log.Named("recording"),
		capture: capture,
	}
}

// Start handles POST /api/recording/start. The camera stays owned until
// Stop; a running stream is preempted.
func (h *RecordingHandler) Start(c *gin.Context) {
	filename, err := h.capture.StartRecording(c.Request.Context())
	if err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"filename": filename})
}

// Stop handles POST /api/recording/stop. Blocks until both pipeline
// stages exited and the file is finalized.
func (h *RecordingHandler) Stop(c *gin.Context) {
	if err := h.capture.StopRecording(c.Request.Context()); err != nil {
		respondErr(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "recording stopped"})
}

// State handles GET /api/recording.
func (h *RecordingHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"recording": h.capture.RecordingActive(),
		"filename":  h.capture.RecordingFilename(),
	})
}
