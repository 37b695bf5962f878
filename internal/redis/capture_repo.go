package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/picamctl/picamctl/pkg/models/cammodel"
	"github.com/picamctl/picamctl/redis"
)

var (
	ErrCaptureNotFound = errors.New("capture not found")

	captureKeyPrefix = "picam:capture:"
	captureNamesKey  = "picam:captures" // SET of filenames
)

// CaptureRepository persists per-capture metadata. Every record is written
// as a JSON sidecar file next to the captures; Redis, when reachable,
// carries the same records for fast lookup. The sidecar is the source of
// truth so a Redis wipe loses nothing.
type CaptureRepository struct {
	client      *redis.Client
	log         *zap.Logger
	metadataDir string
}

func newCaptureRepository(log *zap.Logger, client *redis.Client, metadataDir string) *CaptureRepository {
	log = log.Named("capture_repo")

	return &CaptureRepository{
		log:         log,
		client:      client,
		metadataDir: metadataDir,
	}
}

// SaveCapture persists one capture record.
func (r *CaptureRepository) SaveCapture(ctx context.Context, meta cammodel.CaptureMeta) error {
	payload, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	if err := r.writeSidecar(meta.Filename, payload); err != nil {
		return err
	}

	if r.client != nil {
		pipe := r.client.TxPipeline()
		pipe.Set(ctx, captureKey(meta.Filename), payload, 0)
		pipe.SAdd(ctx, captureNamesKey, meta.Filename)
		if _, err := pipe.Exec(ctx); err != nil {
			// Sidecar already landed; Redis is an index, not the record.
			r.log.Warn("redis write failed", zap.String("filename", meta.Filename), zap.Error(err))
		}
	}
	return nil
}

// GetCapture fetches one record by filename. Redis first, sidecar
// fallback. Returns ErrCaptureNotFound when neither has it.
func (r *CaptureRepository) GetCapture(ctx context.Context, filename string) (*cammodel.CaptureMeta, error) {
	if r.client != nil {
		value, err := r.client.Get(ctx, captureKey(filename)).Bytes()
		if err == nil {
			return decodeCapture(value)
		}
		if !errors.Is(err, goredis.Nil) {
			r.log.Warn("redis read failed", zap.String("filename", filename), zap.Error(err))
		}
	}
	return r.readSidecar(filename)
}

// DeleteCapture removes the record from Redis and the sidecar file.
func (r *CaptureRepository) DeleteCapture(ctx context.Context, filename string) error {
	if r.client != nil {
		pipe := r.client.TxPipeline()
		pipe.Del(ctx, captureKey(filename))
		pipe.SRem(ctx, captureNamesKey, filename)
		if _, err := pipe.Exec(ctx); err != nil {
			r.log.Warn("redis delete failed", zap.String("filename", filename), zap.Error(err))
		}
	}

	path := r.sidecarPath(filename)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove sidecar: %w", err)
	}
	return nil
}

func (r *CaptureRepository) writeSidecar(filename string, payload []byte) error {
	if err := os.MkdirAll(r.metadataDir, 0o755); err != nil {
		return fmt.Errorf("mkdir metadata dir: %w", err)
	}
	path := r.sidecarPath(filename)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}

func (r *CaptureRepository) readSidecar(filename string) (*cammodel.CaptureMeta, error) {
	raw, err := os.ReadFile(r.sidecarPath(filename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrCaptureNotFound
		}
		return nil, fmt.Errorf("read sidecar: %w", err)
	}
	return decodeCapture(raw)
}

// sidecarPath maps a capture filename to its metadata file. The media
// extension is kept so snap_x.jpg and snap_x.mp4 cannot collide.
func (r *CaptureRepository) sidecarPath(filename string) string {
	base := strings.ReplaceAll(filepath.Base(filename), string(filepath.Separator), "_")
	return filepath.Join(r.metadataDir, base+".json")
}

func captureKey(filename string) string {
	return captureKeyPrefix + filename
}

func decodeCapture(raw []byte) (*cammodel.CaptureMeta, error) {
	var meta cammodel.CaptureMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &meta, nil
}
