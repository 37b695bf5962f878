package redis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/picamctl/picamctl/pkg/models/cammodel"
)

// sidecarRepo builds a repository without a Redis connection: records live
// in JSON sidecar files only.
func sidecarRepo(t *testing.T) (*CaptureRepository, string) {
	t.Helper()
	dir := t.TempDir()
	repo := NewRepository(zap.NewNop(), "", dir)
	return repo.Captures, dir
}

func TestRepositorySidecarOnlyNotAvailable(t *testing.T) {
	repo := NewRepository(zap.NewNop(), "", t.TempDir())

	if repo.Available(context.Background()) {
		t.Fatal("sidecar-only repository reported the index available")
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCaptureRepoSidecarRoundTrip(t *testing.T) {
	repo, dir := sidecarRepo(t)
	ctx := context.Background()

	meta := cammodel.CaptureMeta{
		Filename:   "snap_20260301_120000.jpg",
		Category:   "snapshot",
		Timestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		SizeBytes:  123456,
		SizeHuman:  "0.12 MB",
		Resolution: "1920x1080",
	}

	if err := repo.SaveCapture(ctx, meta); err != nil {
		t.Fatalf("save: %v", err)
	}

	sidecar := filepath.Join(dir, meta.Filename+".json")
	if _, err := os.Stat(sidecar); err != nil {
		t.Fatalf("sidecar file missing: %v", err)
	}

	got, err := repo.GetCapture(ctx, meta.Filename)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Filename != meta.Filename || got.Category != meta.Category || got.SizeBytes != meta.SizeBytes {
		t.Fatalf("got %+v, want %+v", got, meta)
	}
	if got.Resolution != "1920x1080" {
		t.Fatalf("resolution lost: %q", got.Resolution)
	}
}

func TestCaptureRepoGetMissing(t *testing.T) {
	repo, _ := sidecarRepo(t)

	_, err := repo.GetCapture(context.Background(), "nope.jpg")
	if !errors.Is(err, ErrCaptureNotFound) {
		t.Fatalf("got %v, want ErrCaptureNotFound", err)
	}
}

func TestCaptureRepoDelete(t *testing.T) {
	repo, dir := sidecarRepo(t)
	ctx := context.Background()

	meta := cammodel.CaptureMeta{Filename: "rec_x.mp4", Category: "video"}
	if err := repo.SaveCapture(ctx, meta); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := repo.DeleteCapture(ctx, meta.Filename); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, meta.Filename+".json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("sidecar survived delete")
	}

	// Deleting a missing record is not an error.
	if err := repo.DeleteCapture(ctx, meta.Filename); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
}
