package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"go.uber.org/zap"

	"github.com/picamctl/picamctl/internal/camera"
	"github.com/picamctl/picamctl/internal/motion"
	"github.com/picamctl/picamctl/internal/redis"
	"github.com/picamctl/picamctl/internal/schedule"
)

// StatusOptions tunes the status snapshot cache.
type StatusOptions struct {
	// TTL controls how long the in-memory snapshot is served.
	// Default 1s; the dashboard polls every 2s.
	TTL time.Duration
	// RefreshTimeout bounds the work for a single refresh.
	RefreshTimeout time.Duration
}

func (o *StatusOptions) setDefaults() {
	if o.TTL <= 0 {
		o.TTL = time.Second
	}
	if o.RefreshTimeout <= 0 {
		o.RefreshTimeout = 500 * time.Millisecond
	}
}

// Status is the dashboard snapshot.
type Status struct {
	DeviceState     string                 `json:"device_state"`
	StreamActive    bool                   `json:"stream_active"`
	FrameCount      uint64                 `json:"frame_count"`
	Recording       bool                   `json:"recording"`
	RecordingFile   string                 `json:"recording_file,omitempty"`
	Timelapse       camera.TimelapseStatus `json:"timelapse"`
	ScheduledTasks  int                    `json:"scheduled_tasks"`
	InProgressTasks int                    `json:"in_progress_tasks"`
	MotionEnabled   bool                   `json:"motion_enabled"`
	MotionTriggers  uint64                 `json:"motion_triggers"`
	RedisConnected  bool                   `json:"redis_connected"`
	Disk            DiskUsage              `json:"disk"`
	UptimeSeconds   int64                  `json:"uptime_seconds"`
	GeneratedAt     time.Time              `json:"generated_at"`
}

// StatusResult lets the handler set cache telemetry headers.
type StatusResult struct {
	Data     Status
	CacheHit bool
}

// StatusService assembles the dashboard snapshot behind a short TTL cache.
// Concurrent refreshes are coalesced.
type StatusService struct {
	log     *zap.Logger
	stream  *camera.Stream
	arbiter *camera.Arbiter
	capture *CaptureService
	gallery *GalleryService
	store   *schedule.Store
	engine  *motion.Engine
	repo    *redis.Repository
	started time.Time

	mu      sync.RWMutex
	cache   *Status
	expires time.Time

	opts StatusOptions
	now  func() time.Time

	sg singleflight.Group
}

func NewStatusService(
	log *zap.Logger,
	stream *camera.Stream,
	arbiter *camera.Arbiter,
	capture *CaptureService,
	gallery *GalleryService,
	store *schedule.Store,
	engine *motion.Engine,
	repo *redis.Repository,
	opts StatusOptions,
) *StatusService {
	opts.setDefaults()
	return &StatusService{
		log:     log.Named("status_service"),
		stream:  stream,
		arbiter: arbiter,
		capture: capture,
		gallery: gallery,
		store:   store,
		engine:  engine,
		repo:    repo,
		started: time.Now(),
		opts:    opts,
		now:     time.Now,
	}
}

// Get returns the cached snapshot or refreshes it when expired.
func (s *StatusService) Get(ctx context.Context) (StatusResult, error) {
	s.mu.RLock()
	if s.cache != nil && s.now().Before(s.expires) {
		out := *s.cache
		s.mu.RUnlock()
		return StatusResult{Data: out, CacheHit: true}, nil
	}
	s.mu.RUnlock()

	v, err, _ := s.sg.Do("status-refresh", func() (any, error) {
		// Double-check freshness after winning the flight.
		s.mu.RLock()
		if s.cache != nil && s.now().Before(s.expires) {
			out := *s.cache
			s.mu.RUnlock()
			return StatusResult{Data: out, CacheHit: true}, nil
		}
		s.mu.RUnlock()

		ctx, cancel := context.WithTimeout(ctx, s.opts.RefreshTimeout)
		defer cancel()

		data := s.refresh(ctx)

		s.mu.Lock()
		s.cache = &data
		s.expires = s.now().Add(s.opts.TTL)
		s.mu.Unlock()

		return StatusResult{Data: data, CacheHit: false}, nil
	})
	if err != nil {
		return StatusResult{}, err
	}
	return v.(StatusResult), nil
}

func (s *StatusService) refresh(ctx context.Context) Status {
	st := Status{
		DeviceState:    s.arbiter.State().String(),
		StreamActive:   s.stream.Active(),
		FrameCount:     s.stream.FrameCount(),
		Recording:      s.capture.RecordingActive(),
		RecordingFile:  s.capture.RecordingFilename(),
		Timelapse:      s.capture.TimelapseStatus(),
		MotionEnabled:  s.engine.Current().Enabled,
		MotionTriggers: s.engine.Triggers(),
		RedisConnected: s.repo.Available(ctx),
		UptimeSeconds:  int64(s.now().Sub(s.started).Seconds()),
		GeneratedAt:    s.now(),
	}

	for _, t := range s.store.List() {
		switch t.Status {
		case schedule.StatusScheduled:
			st.ScheduledTasks++
		case schedule.StatusInProgress:
			st.InProgressTasks++
		}
	}

	if du, err := s.gallery.Usage(); err == nil {
		st.Disk = du
	} else {
		s.log.Warn("disk usage probe failed", zap.Error(err))
	}
	return st
}
