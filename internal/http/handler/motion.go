package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/picamctl/picamctl/internal/http/dto"
	"github.com/picamctl/picamctl/internal/motion"
)

// MotionHandler reads and updates the motion engine configuration.
//
// Supported operations:
//   - GET  /api/motion/config → current config and detector preset
//   - POST /api/motion/config → partial update
type MotionHandler struct {
	log    *zap.Logger
	engine *motion.Engine
	det    *motion.Detector
}

func NewMotionHandler(log *zap.Logger, engine *motion.Engine, det *motion.Detector) *MotionHandler {
	return &MotionHandler{
		log:    log.Named("motion"),
		engine: engine,
		det:    det,
	}
}

// Get handles GET /api/motion/config.
func (h *MotionHandler) Get(c *gin.Context) {
	cfg := h.engine.Current()
	c.JSON(http.StatusOK, gin.H{
		"enabled":            cfg.Enabled,
		"action":             cfg.Action,
		"record_duration":    int(cfg.RecordDuration.Seconds()),
		"timelapse_shots":    cfg.TimelapseShots,
		"snapshot_cooldown":  int(cfg.SnapshotCooldown.Seconds()),
		"record_cooldown":    int(cfg.RecordCooldown.Seconds()),
		"timelapse_cooldown": int(cfg.TimelapseCooldown.Seconds()),
		"notify_cooldown":    int(cfg.NotifyCooldown.Seconds()),
		"preset":             h.det.CurrentPreset(),
		"triggers":           h.engine.Triggers(),
	})
}

// Update handles POST /api/motion/config. Absent fields keep their value.
func (h *MotionHandler) Update(c *gin.Context) {
	var req dto.MotionConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	if req.Preset != nil {
		preset, ok := motion.Presets[*req.Preset]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("unknown preset %q", *req.Preset)})
			return
		}
		h.det.SetPreset(preset)
	}
	if req.Mask != nil {
		if err := h.det.SetMask(req.Mask); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
	}

	cfg := h.engine.Current()
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	if req.Action != nil {
		cfg.Action = *req.Action
	}
	if req.RecordDurationSec != nil {
		cfg.RecordDuration = time.Duration(*req.RecordDurationSec) * time.Second
	}
	if req.TimelapseShots != nil {
		cfg.TimelapseShots = *req.TimelapseShots
	}
	if req.SnapshotCooldownSec != nil {
		cfg.SnapshotCooldown = time.Duration(*req.SnapshotCooldownSec) * time.Second
	}
	if req.RecordCooldownSec != nil {
		cfg.RecordCooldown = time.Duration(*req.RecordCooldownSec) * time.Second
	}
	if req.TimelapseCooldownSec != nil {
		cfg.TimelapseCooldown = time.Duration(*req.TimelapseCooldownSec) * time.Second
	}
	if req.NotifyCooldownSec != nil {
		cfg.NotifyCooldown = time.Duration(*req.NotifyCooldownSec) * time.Second
	}
	h.engine.Configure(cfg)

	h.log.Info("motion config updated",
		zap.Bool("enabled", cfg.Enabled),
		zap.String("action", cfg.Action))
	h.Get(c)
}
