package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/sync/errgroup"

	httpapi "github.com/nexview/radarsync/internal/api/http"
	"github.com/nexview/radarsync/internal/archive"
	"github.com/nexview/radarsync/internal/config"
	"github.com/nexview/radarsync/internal/overlay"
	"github.com/nexview/radarsync/internal/player"
	"github.com/nexview/radarsync/internal/prefs"
	"github.com/nexview/radarsync/internal/radar"
	"github.com/nexview/radarsync/internal/radar/upstream"
	"github.com/nexview/radarsync/internal/scheduler"
	"github.com/nexview/radarsync/internal/source"
	"github.com/nexview/radarsync/internal/view"
)

func main() {
	// Load configuration (reads .env when present).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Embedded station catalog.
	catalog, err := source.Load()
	if err != nil {
		log.Fatalf("failed to load station catalog: %v", err)
	}

	// Preferences and session persistence.
	prefsDir := cfg.PrefsDir
	if prefsDir == "" {
		prefsDir, err = prefs.DefaultDir()
		if err != nil {
			log.Fatalf("failed to resolve preferences dir: %v", err)
		}
	}
	prefStore, err := prefs.Open(prefsDir)
	if err != nil {
		log.Fatalf("failed to open preferences: %v", err)
	}

	// Local frame archive backing the cache timeline.
	store, err := archive.Open(cfg.ArchiveDir, cfg.ArchiveMaxAge, 0)
	if err != nil {
		log.Fatalf("failed to open frame archive: %v", err)
	}

	// Upstream radar client with backoff and circuit breaking.
	httpClient := &http.Client{Timeout: 30 * time.Second}
	client := upstream.NewClient(httpClient, cfg.UpstreamBaseURL)

	// Rendering surface and layer registry; every registry change is
	// written back as the restorable session.
	surface := overlay.NewMemorySurface()
	registry := overlay.NewRegistry(surface, cfg.OverlayOpacity)
	registry.SetObserver(func(records []overlay.Record) {
		if err := prefStore.SaveSession(records); err != nil {
			log.Printf("failed to persist session: %v", err)
		}
	})

	pl := player.New(registry, cfg.TickInterval)
	defer pl.Stop()

	session := view.NewSession(catalog, registry, surface, pl, view.Fetchers{
		Image:    client,
		Series:   client,
		Forecast: client,
		Cached:   store,
		Index:    store,
	}, store, view.Config{
		FrameCount:  cfg.AnimationFrames,
		LeadTimes:   cfg.ForecastLeadTimes,
		StepMinutes: cfg.ForecastStepMin,
	})

	// Bring back the previous run's layers, or the default station on a
	// fresh install.
	restoreCtx, cancelRestore := context.WithTimeout(context.Background(), time.Minute)
	records, err := prefStore.LoadSession()
	if err != nil {
		log.Printf("failed to read saved session: %v", err)
	}
	if len(records) > 0 {
		session.Restore(restoreCtx, records)
	} else {
		station, _ := prefStore.Preferences()
		if err := session.LoadSource(restoreCtx, station, radar.FieldReflectivity); err != nil {
			log.Printf("failed to load default station %s: %v", station, err)
		}
	}
	cancelRestore()

	// Periodic refresh plus archive cleanup.
	sched := scheduler.New(session, store, cfg.RefreshInterval)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "radarsync",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Session: session,
		Catalog: catalog,
		Prefs:   prefStore,
	})

	// Serve until a termination signal, then drain.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Printf("server stopped: %v", err)
	}
}
