package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/picamctl/picamctl/pkg/models/cammodel"
	"github.com/picamctl/picamctl/redis"
)

const settingsKey = "picam:settings"

var ErrSettingsNotFound = errors.New("settings not found")

// SettingsRepository persists the camera settings across restarts.
type SettingsRepository struct {
	client *redis.Client
	log    *zap.Logger
}

func newSettingsRepository(log *zap.Logger, client *redis.Client) *SettingsRepository {
	log = log.Named("settings_repo")
	return &SettingsRepository{
		log:    log,
		client: client,
	}
}

// Save stores the settings snapshot. No-op without a Redis connection.
func (r *SettingsRepository) Save(ctx context.Context, s cammodel.Settings) error {
	if r.client == nil {
		return nil
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := r.client.Set(ctx, settingsKey, payload, 0).Err(); err != nil {
		return fmt.Errorf("set: %w", err)
	}
	return nil
}

// Load fetches the persisted settings. Returns ErrSettingsNotFound when
// nothing was stored or no Redis connection exists.
func (r *SettingsRepository) Load(ctx context.Context) (*cammodel.Settings, error) {
	if r.client == nil {
		return nil, ErrSettingsNotFound
	}
	value, err := r.client.Get(ctx, settingsKey).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("get: %w", err)
	}

	var s cammodel.Settings
	if err := json.Unmarshal(value, &s); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &s, nil
}
