package redis

import (
	"context"

	"go.uber.org/zap"

	"github.com/picamctl/picamctl/redis"
)

// Repository bundles the capture and settings stores. client may be nil,
// in which case persistence degrades to JSON sidecar files only.
type Repository struct {
	log    *zap.Logger
	client *redis.Client

	Captures *CaptureRepository
	Settings *SettingsRepository
}

func NewRepository(log *zap.Logger, addr string, metadataDir string) *Repository {
	log = log.Named("repo")

	var client *redis.Client
	if addr != "" {
		client = redis.NewClient(addr, log)
	}

	return &Repository{
		log,
		client,
		newCaptureRepository(log, client, metadataDir),
		newSettingsRepository(log, client),
	}
}

// Available reports whether the metadata index answers. Always false in
// sidecar-only mode.
func (r *Repository) Available(ctx context.Context) bool {
	if r.client == nil {
		return false
	}
	return r.client.Available(ctx)
}

// Close releases the underlying connection, if any.
func (r *Repository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
