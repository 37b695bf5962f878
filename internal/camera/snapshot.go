package camera

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/picamctl/picamctl/internal/media"
	"github.com/picamctl/picamctl/pkg/camcmd"
	"github.com/picamctl/picamctl/pkg/models/cammodel"
)

const snapshotTimeout = 30 * time.Second

// Snapshotter runs one-shot still captures under exclusive camera ownership.
type Snapshotter struct {
	log        *zap.Logger
	arbiter    *Arbiter
	settings   *cammodel.SettingsStore
	stillBin   string
	captureDir string
	meta       MetadataSink
}

// NewSnapshotter wires a snapshot operation factory.
func NewSnapshotter(log *zap.Logger, arbiter *Arbiter, settings *cammodel.SettingsStore, stillBin, captureDir string, meta MetadataSink) *Snapshotter {
	return &Snapshotter{
		log:        log.Named("snapshot"),
		arbiter:    arbiter,
		settings:   settings,
		stillBin:   stillBin,
		captureDir: captureDir,
		meta:       meta,
	}
}

// Capture acquires the camera, takes one still at res and returns the
// capture filename. Rotation is applied losslessly after capture; metadata
// persistence is best-effort.
func (s *Snapshotter) Capture(ctx context.Context, res cammodel.Resolution) (string, error) {
	filename := "snap_" + time.Now().Format("20060102_150405") + ".jpg"
	path := filepath.Join(s.captureDir, filename)

	err := s.arbiter.WithExclusive(ctx, func() error {
		// One settings snapshot for the whole operation.
		snap := s.settings.Snapshot()

		argv := camcmd.StillArgv(s.stillBin, res, snap, path)
		if err := runTool(ctx, s.log, argv, snapshotTimeout); err != nil {
			return err
		}

		if err := media.RotateImage(path, snap.Rotation); err != nil {
			s.log.Warn("snapshot rotation failed", zap.String("file", filename), zap.Error(err))
		}

		meta := cammodel.NewCaptureMeta(path, filename, "snapshot", res, snap)
		if err := s.meta.SaveCapture(ctx, meta); err != nil {
			s.log.Warn("metadata persistence failed", zap.String("file", filename), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.log.Info("snapshot captured", zap.String("file", filename),
		zap.Int("width", res.Width), zap.Int("height", res.Height))
	return filename, nil
}
