package dto

// MotionConfig is the POST /api/motion/config payload. Pointer fields
// leave the current value unchanged.
type MotionConfig struct {
	Enabled              *bool   `json:"enabled"`
	Preset               *string `json:"preset"` // low | medium | high
	Action               *string `json:"action"` // snapshot | record | timelapse | none
	RecordDurationSec    *int    `json:"record_duration"`
	TimelapseShots       *int    `json:"timelapse_shots"`
	SnapshotCooldownSec  *int    `json:"snapshot_cooldown"`
	RecordCooldownSec    *int    `json:"record_cooldown"`
	TimelapseCooldownSec *int    `json:"timelapse_cooldown"`
	NotifyCooldownSec    *int    `json:"notify_cooldown"`
	Mask                 []uint8 `json:"mask,omitempty"` // row-major grid, non-zero = active
}
