package dto

// SettingsUpdate is the POST /api/settings payload. Pointer fields
// distinguish "leave unchanged" from an explicit zero.
type SettingsUpdate struct {
	Shutter      *int     `json:"shutter"`
	Gain         *float64 `json:"gain"`
	AWB          *string  `json:"awb"`
	FocusMode    *string  `json:"focus_mode"`
	LensPosition *float64 `json:"lens_position"`
	Brightness   *float64 `json:"brightness"`
	Contrast     *float64 `json:"contrast"`
	Saturation   *float64 `json:"saturation"`
	Sharpness    *float64 `json:"sharpness"`
	EV           *float64 `json:"ev"`
	Zoom         *float64 `json:"zoom"`
	Rotation     *int     `json:"rotation"`

	CaptureWidth  *int `json:"capture_width"`
	CaptureHeight *int `json:"capture_height"`

	StreamWidth     *int     `json:"stream_width"`
	StreamHeight    *int     `json:"stream_height"`
	StreamFramerate *float64 `json:"stream_framerate"`
}
