package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/picamctl/picamctl/internal/camera"
	"github.com/picamctl/picamctl/internal/config"
	"github.com/picamctl/picamctl/internal/http/handler"
	mw "github.com/picamctl/picamctl/internal/http/middleware"
	"github.com/picamctl/picamctl/internal/media"
	"github.com/picamctl/picamctl/internal/motion"
	"github.com/picamctl/picamctl/internal/notify"
	"github.com/picamctl/picamctl/internal/redis"
	"github.com/picamctl/picamctl/internal/schedule"
	"github.com/picamctl/picamctl/internal/service"
	"github.com/picamctl/picamctl/internal/task"
	"github.com/picamctl/picamctl/pkg/models/cammodel"
)

func main() {
	configPath := flag.String("config", "picamctl.yaml", "config file path")
	showVersion := flag.Bool("v", false, "print version and exit")
	flag.BoolVar(showVersion, "version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("picamctl %s (commit %s, built %s)\n", config.Version, config.GitCommit, config.BuildDate)
		os.Exit(0)
	}

	// Read env
	isDev := os.Getenv("ENV") == "dev"

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Create Zap logger
	log := buildLogger()
	defer log.Sync()
	log = log.Named("main")

	for _, dir := range []string{cfg.CaptureDir, cfg.ThumbDir, cfg.MetadataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal("media directory unavailable", zap.String("dir", dir), zap.Error(err))
		}
	}

	// Root context: cancelled on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Persistence: Redis index + JSON sidecars.
	repo := redis.NewRepository(log, cfg.RedisAddr, cfg.MetadataDir)
	defer repo.Close()

	// Shared camera settings, restored from the last run when possible.
	settings := cammodel.NewSettingsStore()
	if persisted, err := repo.Settings.Load(ctx); err == nil {
		settings.Update(func(s *cammodel.Settings) { *s = *persisted })
		log.Info("settings restored")
	}

	// Camera pipeline.
	arbiter := camera.NewArbiter(log, camera.ArbiterOptions{AcquireTimeout: cfg.AcquireTimeout})
	stream := camera.NewStream(log, arbiter, settings, cfg.VideoBin)
	snapshotter := camera.NewSnapshotter(log, arbiter, settings, cfg.StillBin, cfg.CaptureDir, repo.Captures)
	recorder := camera.NewRecorder(log, arbiter, settings, cfg.VideoBin, cfg.FFmpegBin, cfg.CaptureDir, repo.Captures)
	timelapse := camera.NewTimelapse(log, arbiter, settings, cfg.StillBin, cfg.CaptureDir, repo.Captures)

	// Background workers.
	sup := task.NewSupervisor(ctx, log, 0)
	store := schedule.NewStore()

	captureSvc := service.NewCaptureService(log, snapshotter, recorder, timelapse, settings, store, sup)
	scheduler := schedule.NewScheduler(log, store, captureSvc, schedule.DefaultPollInterval)

	compiler := media.NewCompiler(log, cfg.FFmpegBin, cfg.CaptureDir)
	gallerySvc := service.NewGalleryService(log, cfg.CaptureDir, cfg.ThumbDir, repo.Captures, compiler)

	// Motion detection.
	detector := motion.NewDetector(motionPreset(cfg.Motion), cfg.Motion.GridCols, cfg.Motion.GridRows)
	if len(cfg.Motion.GridMask) > 0 {
		if err := detector.SetMask(cfg.Motion.GridMask); err != nil {
			log.Fatal("invalid motion grid mask", zap.Error(err))
		}
	}
	notifier := buildNotifier(log, cfg.Notify)
	engine := motion.NewEngine(log, detector, captureSvc, notifier, sup, stream, motion.Config{
		Enabled:        cfg.Motion.Enabled,
		Action:         cfg.Motion.Action,
		RecordDuration: cfg.Motion.RecordDuration,
		TimelapseShots: cfg.Motion.TimelapseFrames,

		SnapshotCooldown:  cfg.Motion.SnapshotCool,
		RecordCooldown:    cfg.Motion.RecordingCool,
		TimelapseCooldown: cfg.Motion.TimelapseCool,
		NotifyCooldown:    cfg.Notify.RateLimit,
	})

	statusSvc := service.NewStatusService(log, stream, arbiter, captureSvc, gallerySvc, store, engine, repo, service.StatusOptions{})

	// Create Gin router
	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = zap.NewStdLog(log.Named("gin")).Writer()
	r := gin.New()

	// Apply Gin middlewares
	{
		r.Use(gin.Recovery()) // Recovery first (outermost)
		r.Use(mw.RequestID())

		if isDev { // Enable CORS for local Vite dev
			r.Use(cors.New(cors.Config{
				AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
				AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowHeaders:     []string{"X-Request-ID", "Content-Type"},
				ExposeHeaders:    []string{"X-Request-ID", "X-Total-Count", "X-Cache"},
				AllowCredentials: true,
				MaxAge:           12 * time.Hour,
			}))
		} else { // Behind Nginx + TLS
			r.SetTrustedProxies([]string{"127.0.0.1"})
			r.Use(secure.New(secure.Config{
				SSLProxyHeaders: map[string]string{
					"X-Forwarded-Proto": "https",
				},
			}))
		}

		r.Use(accessLog(log.Named("access")))

		r.Use(func(c *gin.Context) {
			// Hard 1MB request body cap; every API payload is small JSON.
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
			c.Next()
		})
	}

	// Register route handlers
	{
		r.GET("/api/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })

		{
			camerahndlr := handler.NewCameraHandler(log, stream, captureSvc)
			r.GET("/api/stream", camerahndlr.Stream)
			r.GET("/api/stream/stats", camerahndlr.FrameCount)
			r.POST("/api/snapshot", camerahndlr.Snapshot)
		}

		{
			rechndlr := handler.NewRecordingHandler(log, captureSvc)
			r.GET("/api/recording", rechndlr.State)
			r.POST("/api/recording/start", rechndlr.Start)
			r.POST("/api/recording/stop", rechndlr.Stop)
		}

		{
			tlhndlr := handler.NewTimelapseHandler(log, captureSvc, compiler, sup)
			r.POST("/api/timelapse/start", tlhndlr.Start)
			r.POST("/api/timelapse/stop", tlhndlr.Stop)
			r.GET("/api/timelapse/status", tlhndlr.Status)
			r.POST("/api/compile/:session", tlhndlr.Compile)
			r.GET("/api/compile/:session", tlhndlr.CompileStatus)
		}

		{
			schedhndlr := handler.NewSchedulesHandler(log, store)
			r.GET("/api/schedules", schedhndlr.List)
			r.POST("/api/schedules", schedhndlr.Create)
			r.DELETE("/api/schedules/:id", schedhndlr.Delete)
		}

		{
			settingshndlr := handler.NewSettingsHandler(log, settings, repo.Settings)
			r.GET("/api/settings", settingshndlr.Get)
			r.POST("/api/settings", settingshndlr.Update)
			r.GET("/api/resolutions", settingshndlr.Resolutions)
		}

		{
			galleryhndlr := handler.NewGalleryHandler(log, gallerySvc, cfg.ThumbDir)
			r.GET("/api/gallery", galleryhndlr.List)
			r.DELETE("/api/gallery/:filename", galleryhndlr.Delete)
			r.GET("/api/captures/:filename", galleryhndlr.Serve)
			r.GET("/api/thumbs/:filename", galleryhndlr.ServeThumb)
			r.GET("/api/disk", galleryhndlr.Usage)
			r.GET("/api/timelapses", galleryhndlr.ListSessions)
			r.GET("/api/timelapses/:session", galleryhndlr.Session)
			r.GET("/api/timelapses/:session/frames/:frame", galleryhndlr.ServeSessionFrame)
			r.DELETE("/api/timelapses/:session", galleryhndlr.DeleteSession)
		}

		{
			motionhndlr := handler.NewMotionHandler(log, engine, detector)
			r.GET("/api/motion/config", motionhndlr.Get)
			r.POST("/api/motion/config", motionhndlr.Update)
		}

		r.GET("/api/status", handler.NewStatusHandler(log, statusSvc).Get)
	}

	// Long-lived workers.
	sup.Go("stream", func(ctx context.Context) error {
		stream.Run(ctx)
		return nil
	})
	sup.Go("scheduler", func(ctx context.Context) error {
		scheduler.Run(ctx)
		return nil
	})
	sup.Go("motion", func(ctx context.Context) error {
		return engine.Run(ctx)
	})

	httpsrv := &http.Server{
		Addr:              cfg.ListenAddr + ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
		// No WriteTimeout: the MJPEG stream writes indefinitely.
	}

	sup.Go("http", func(ctx context.Context) error {
		log.Info("running HTTP server", zap.String("addr", httpsrv.Addr))
		if err := httpsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			stop() // bring the rest down
			return err
		}
		return nil
	})

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpsrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}

	sup.Wait()
	log.Info("server closed")
}

// motionPreset resolves the configured preset with optional overrides.
func motionPreset(mc config.MotionConfig) motion.Preset {
	preset, ok := motion.Presets[mc.Preset]
	if !ok {
		preset = motion.Presets["medium"]
	}
	if mc.Sensitivity > 0 {
		preset.Sensitivity = mc.Sensitivity
	}
	if mc.PixelThreshold > 0 {
		preset.PixelThreshold = mc.PixelThreshold
	}
	return preset
}

// buildNotifier assembles the configured notification backends.
func buildNotifier(log *zap.Logger, nc config.NotifyConfig) *notify.Multi {
	var backends []notify.Notifier
	if nc.SMTPHost != "" && nc.To != "" {
		backends = append(backends, notify.NewEmailNotifier(log, notify.EmailConfig{
			Host:     nc.SMTPHost,
			Port:     nc.SMTPPort,
			Username: nc.SMTPUser,
			Password: nc.SMTPPass,
			From:     nc.From,
			To:       nc.To,
		}))
	}
	if nc.WebhookURL != "" {
		backends = append(backends, notify.NewWebhookNotifier(log, nc.WebhookURL))
	}
	return notify.NewMulti(log, backends...)
}

// accessLog records request/response details with Zap after handling.
func accessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		var errs []error
		for _, ge := range c.Errors {
			if ge.Err != nil {
				errs = append(errs, ge.Err)
			}
		}
		joinedErr := errors.Join(errs...)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", mw.GetRequestID(c)),
			zap.Duration("latency", latency),
		}
		if joinedErr != nil {
			fields = append(fields, zap.Error(joinedErr))
		}

		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// helpers

func buildLogger() *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	logConfig.Level.SetLevel(zap.DebugLevel)
	return zap.Must(logConfig.Build())
}
