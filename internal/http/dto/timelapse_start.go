package dto

// TimelapseStart is the POST /api/timelapse/start payload. Values are
// seconds; zero picks the server defaults.
type TimelapseStart struct {
	IntervalSec int `json:"interval"`
	DurationSec int `json:"duration"`
}
