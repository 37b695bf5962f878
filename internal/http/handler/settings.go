package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/picamctl/picamctl/internal/http/dto"
	"github.com/picamctl/picamctl/internal/redis"
	"github.com/picamctl/picamctl/pkg/models/cammodel"
)

// SettingsHandler reads and updates the shared camera settings. Updates
// take effect lazily: in-flight operations keep the snapshot they hold and
// the stream restarts itself once it notices the divergence.
//
// Supported operations:
//   - GET  /api/settings     → current settings plus resolution tables
//   - POST /api/settings     → partial update
//   - GET  /api/resolutions  → resolution tables alone
type SettingsHandler struct {
	log      *zap.Logger
	settings *cammodel.SettingsStore
	repo     *redis.SettingsRepository
}

func NewSettingsHandler(log *zap.Logger, settings *cammodel.SettingsStore, repo *redis.SettingsRepository) *SettingsHandler {
	return &SettingsHandler{
		log:      log.Named("settings"),
		settings: settings,
		repo:     repo,
	}
}

// Get handles GET /api/settings.
func (h *SettingsHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"settings":            h.settings.Snapshot(),
		"capture_resolutions": cammodel.CaptureResolutions,
		"stream_resolutions":  cammodel.StreamResolutions(),
	})
}

// Resolutions handles GET /api/resolutions.
func (h *SettingsHandler) Resolutions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"capture": cammodel.CaptureResolutions,
		"stream":  cammodel.StreamResolutions(),
	})
}

// Update handles POST /api/settings. Absent fields keep their value.
func (h *SettingsHandler) Update(c *gin.Context) {
	var req dto.SettingsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	updated := h.settings.Update(func(s *cammodel.Settings) {
		applySettings(s, &req)
	})

	// Persist best-effort; the live value is already updated.
	if err := h.repo.Save(c.Request.Context(), updated); err != nil {
		h.log.Warn("settings persistence failed", zap.Error(err))
	}

	h.log.Info("settings updated")
	c.JSON(http.StatusOK, updated)
}

func applySettings(s *cammodel.Settings, req *dto.SettingsUpdate) {
	if req.Shutter != nil {
		s.Shutter = *req.Shutter
	}
	if req.Gain != nil {
		s.Gain = *req.Gain
	}
	if req.AWB != nil {
		s.AWB = *req.AWB
	}
	if req.FocusMode != nil {
		s.FocusMode = *req.FocusMode
	}
	if req.LensPosition != nil {
		s.LensPosition = *req.LensPosition
	}
	if req.Brightness != nil {
		s.Brightness = *req.Brightness
	}
	if req.Contrast != nil {
		s.Contrast = *req.Contrast
	}
	if req.Saturation != nil {
		s.Saturation = *req.Saturation
	}
	if req.Sharpness != nil {
		s.Sharpness = *req.Sharpness
	}
	if req.EV != nil {
		s.EV = *req.EV
	}
	if req.Zoom != nil {
		s.Zoom = *req.Zoom
	}
	if req.Rotation != nil {
		s.Rotation = *req.Rotation
	}
	if req.CaptureWidth != nil {
		s.CaptureWidth = *req.CaptureWidth
	}
	if req.CaptureHeight != nil {
		s.CaptureHeight = *req.CaptureHeight
	}
	if req.StreamWidth != nil {
		s.StreamWidth = *req.StreamWidth
	}
	if req.StreamHeight != nil {
		s.StreamHeight = *req.StreamHeight
	}
	if req.StreamFramerate != nil {
		s.StreamFramerate = *req.StreamFramerate
	}
}
