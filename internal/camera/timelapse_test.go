package camera

import (
	"testing"
	"time"
)

func TestTimelapseParamsDefaults(t *testing.T) {
	got := TimelapseParams{}.normalized()

	if got.SessionID == "" {
		t.Fatal("session id not generated")
	}
	if got.Interval != 5*time.Second {
		t.Fatalf("interval = %v, want 5s", got.Interval)
	}
	// A session started without a duration must still capture something.
	if got.Duration != time.Minute {
		t.Fatalf("duration = %v, want 1m", got.Duration)
	}
}

func TestTimelapseParamsExplicitValuesKept(t *testing.T) {
	in := TimelapseParams{
		SessionID: "20260301_120000_ABC123",
		Interval:  2 * time.Second,
		Duration:  10 * time.Minute,
	}
	got := in.normalized()

	if got.SessionID != in.SessionID || got.Interval != in.Interval || got.Duration != in.Duration {
		t.Fatalf("normalized mutated explicit params: %+v", got)
	}
}

func TestNewSessionIDShape(t *testing.T) {
	id := NewSessionID()
	// 20060102_150405_XXXXXX
	if len(id) != 22 || id[8] != '_' || id[15] != '_' {
		t.Fatalf("session id %q has unexpected shape", id)
	}
	if id == NewSessionID() {
		t.Fatal("consecutive session ids collided")
	}
}
