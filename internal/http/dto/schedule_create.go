package dto

// ScheduleCreate is the POST /api/schedules payload. Start and End use the
// HTML datetime-local format (2006-01-02T15:04). Interval and Duration are
// seconds; Interval applies to timelapse tasks, Duration to recordings.
type ScheduleCreate struct {
	Type        string `json:"type" binding:"required"`
	Start       string `json:"start" binding:"required"`
	End         string `json:"end" binding:"required"`
	IntervalSec int    `json:"interval"`
	DurationSec int    `json:"duration"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}
