package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/picamctl/picamctl/internal/media"
	"github.com/picamctl/picamctl/internal/redis"
	"github.com/picamctl/picamctl/pkg/models/cammodel"
)

// ErrNotInGallery rejects paths outside the capture directory.
var ErrNotInGallery = errors.New("file not in gallery")

const thumbMaxDim = 400

// GalleryItem is one capture plus its metadata, when known.
type GalleryItem struct {
	Filename  string                `json:"filename"`
	Kind      string                `json:"kind"` // image | video | gif
	SizeBytes int64                 `json:"size_bytes"`
	Modified  int64                 `json:"modified"` // unix seconds
	Thumbnail string                `json:"thumbnail,omitempty"`
	Meta      *cammodel.CaptureMeta `json:"meta,omitempty"`
}

// DiskUsage summarizes the capture volume.
type DiskUsage struct {
	TotalBytes int64   `json:"total_bytes"`
	FreeBytes  int64   `json:"free_bytes"`
	UsedBytes  int64   `json:"used_bytes"`
	UsedPct    float64 `json:"used_pct"`
}

// GalleryService lists and manages captured media. Thumbnails are generated
// lazily on first listing and cached on disk.
type GalleryService struct {
	log        *zap.Logger
	captureDir string
	thumbDir   string
	captures   *redis.CaptureRepository
	compiler   *media.Compiler
}

func NewGalleryService(log *zap.Logger, captureDir, thumbDir string, captures *redis.CaptureRepository, compiler *media.Compiler) *GalleryService {
	return &GalleryService{
		log:        log.Named("gallery"),
		captureDir: captureDir,
		thumbDir:   thumbDir,
		captures:   captures,
		compiler:   compiler,
	}
}

// List returns gallery items newest first. filter is "", "image", "video"
// or "gif".
func (g *GalleryService) List(ctx context.Context, filter string) ([]GalleryItem, error) {
	entries, err := os.ReadDir(g.captureDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read capture dir: %w", err)
	}

	items := make([]GalleryItem, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue // timelapse session dirs are not gallery items
		}
		kind := mediaKind(e.Name())
		if kind == "" {
			continue
		}
		if filter != "" && kind != filter {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}

		item := GalleryItem{
			Filename:  e.Name(),
			Kind:      kind,
			SizeBytes: info.Size(),
			Modified:  info.ModTime().Unix(),
		}
		if thumb := g.thumbFor(ctx, e.Name(), kind); thumb != "" {
			item.Thumbnail = thumb
		}
		if meta, err := g.captures.GetCapture(ctx, e.Name()); err == nil {
			item.Meta = meta
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Modified > items[j].Modified })
	return items, nil
}

// TimelapseSession summarizes one captured frame directory.
type TimelapseSession struct {
	ID        string                `json:"id"`
	Frames    int                   `json:"frames"`
	Preview   string                `json:"preview,omitempty"` // first frame filename
	SizeBytes int64                 `json:"size_bytes"`
	Modified  int64                 `json:"modified"` // unix seconds
	Compiled  []string              `json:"compiled,omitempty"`
	Meta      *cammodel.CaptureMeta `json:"meta,omitempty"`
}

// SessionDetail is one session plus its full frame list.
type SessionDetail struct {
	TimelapseSession
	FrameFiles []string `json:"frame_files"`
}

// sessionsDir is where the timelapse worker writes frame directories.
func (g *GalleryService) sessionsDir() string {
	return filepath.Join(g.captureDir, "timelapses")
}

// ListSessions returns every timelapse session newest first.
func (g *GalleryService) ListSessions(ctx context.Context) ([]TimelapseSession, error) {
	entries, err := os.ReadDir(g.sessionsDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}

	sessions := make([]TimelapseSession, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		s, err := g.sessionSummary(ctx, e.Name())
		if err != nil {
			g.log.Warn("session listing failed", zap.String("session", e.Name()), zap.Error(err))
			continue
		}
		sessions = append(sessions, s.TimelapseSession)
	}

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Modified > sessions[j].Modified })
	return sessions, nil
}

// Session returns one session with its frame list.
func (g *GalleryService) Session(ctx context.Context, id string) (SessionDetail, error) {
	if id == "" || filepath.Base(id) != id {
		return SessionDetail{}, media.ErrSessionNotFound
	}
	if fi, err := os.Stat(filepath.Join(g.sessionsDir(), id)); err != nil || !fi.IsDir() {
		return SessionDetail{}, media.ErrSessionNotFound
	}
	return g.sessionSummary(ctx, id)
}

func (g *GalleryService) sessionSummary(ctx context.Context, id string) (SessionDetail, error) {
	dir := filepath.Join(g.sessionsDir(), id)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return SessionDetail{}, fmt.Errorf("read session: %w", err)
	}

	detail := SessionDetail{TimelapseSession: TimelapseSession{ID: id}}
	for _, e := range entries {
		if e.IsDir() || strings.ToLower(filepath.Ext(e.Name())) != ".jpg" {
			continue
		}
		detail.FrameFiles = append(detail.FrameFiles, e.Name())
		if info, err := e.Info(); err == nil {
			detail.SizeBytes += info.Size()
			if mod := info.ModTime().Unix(); mod > detail.Modified {
				detail.Modified = mod
			}
		}
	}
	sort.Strings(detail.FrameFiles)
	detail.Frames = len(detail.FrameFiles)
	if detail.Frames > 0 {
		detail.Preview = detail.FrameFiles[0]
	}

	// Compiled outputs land next to the other captures as <id>.mp4/<id>.gif.
	for _, ext := range []string{".mp4", ".gif"} {
		if _, err := os.Stat(filepath.Join(g.captureDir, id+ext)); err == nil {
			detail.Compiled = append(detail.Compiled, id+ext)
		}
	}

	if meta, err := g.captures.GetCapture(ctx, id); err == nil {
		detail.Meta = meta
	}
	return detail, nil
}

// ResolveSessionFrame maps a session frame name to its on-disk path.
func (g *GalleryService) ResolveSessionFrame(id, frame string) (string, error) {
	if id == "" || filepath.Base(id) != id {
		return "", media.ErrSessionNotFound
	}
	if frame == "" || filepath.Base(frame) != frame {
		return "", ErrNotInGallery
	}
	path := filepath.Join(g.sessionsDir(), id, frame)
	if _, err := os.Stat(path); err != nil {
		return "", ErrNotInGallery
	}
	return path, nil
}

// DeleteSession removes a session's frame directory, its compiled outputs
// and its metadata record.
func (g *GalleryService) DeleteSession(ctx context.Context, id string) error {
	if id == "" || filepath.Base(id) != id {
		return media.ErrSessionNotFound
	}
	dir := filepath.Join(g.sessionsDir(), id)
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return media.ErrSessionNotFound
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}

	for _, name := range []string{id + ".mp4", id + ".gif", thumbName(id + ".mp4")} {
		path := filepath.Join(g.captureDir, name)
		if strings.HasSuffix(name, "_thumb.jpg") {
			path = filepath.Join(g.thumbDir, name)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			g.log.Warn("session artifact removal failed", zap.String("file", name), zap.Error(err))
		}
	}
	if err := g.captures.DeleteCapture(ctx, id); err != nil {
		g.log.Warn("session metadata removal failed", zap.String("session", id), zap.Error(err))
	}

	g.log.Info("timelapse session deleted", zap.String("session", id))
	return nil
}

// Delete removes a capture, its thumbnail and its metadata record.
func (g *GalleryService) Delete(ctx context.Context, filename string) error {
	path, err := g.Resolve(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotInGallery
		}
		return fmt.Errorf("remove capture: %w", err)
	}

	if err := os.Remove(filepath.Join(g.thumbDir, thumbName(filename))); err != nil && !errors.Is(err, os.ErrNotExist) {
		g.log.Warn("thumbnail removal failed", zap.String("filename", filename), zap.Error(err))
	}
	if err := g.captures.DeleteCapture(ctx, filename); err != nil {
		g.log.Warn("metadata removal failed", zap.String("filename", filename), zap.Error(err))
	}

	g.log.Info("capture deleted", zap.String("filename", filename))
	return nil
}

// Resolve maps a gallery filename to its on-disk path, rejecting traversal
// outside the capture directory.
func (g *GalleryService) Resolve(filename string) (string, error) {
	if filename == "" || filepath.Base(filename) != filename {
		return "", ErrNotInGallery
	}
	return filepath.Join(g.captureDir, filename), nil
}

// Usage reports the capture volume's disk usage.
func (g *GalleryService) Usage() (DiskUsage, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(g.captureDir, &st); err != nil {
		return DiskUsage{}, fmt.Errorf("statfs: %w", err)
	}

	total := int64(st.Blocks) * int64(st.Bsize)
	free := int64(st.Bavail) * int64(st.Bsize)
	used := total - free

	du := DiskUsage{TotalBytes: total, FreeBytes: free, UsedBytes: used}
	if total > 0 {
		du.UsedPct = float64(used) / float64(total) * 100
	}
	return du, nil
}

// thumbFor returns the thumbnail filename, generating it when missing.
func (g *GalleryService) thumbFor(ctx context.Context, filename, kind string) string {
	name := thumbName(filename)
	dst := filepath.Join(g.thumbDir, name)
	if _, err := os.Stat(dst); err == nil {
		return name
	}

	if err := os.MkdirAll(g.thumbDir, 0o755); err != nil {
		g.log.Warn("thumbnail dir unavailable", zap.Error(err))
		return ""
	}

	src := filepath.Join(g.captureDir, filename)
	var err error
	switch kind {
	case "image":
		err = media.Thumbnail(src, dst, thumbMaxDim)
	case "video":
		err = g.compiler.VideoThumb(ctx, src, dst)
	default:
		return "" // gifs are their own preview
	}
	if err != nil {
		g.log.Warn("thumbnail generation failed", zap.String("filename", filename), zap.Error(err))
		return ""
	}
	return name
}

func thumbName(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	return base + "_thumb.jpg"
}

func mediaKind(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png":
		return "image"
	case ".mp4":
		return "video"
	case ".gif":
		return "gif"
	default:
		return ""
	}
}
