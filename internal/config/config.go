package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	// UpstreamBaseURL is the radar data service all frame fetches go to.
	UpstreamBaseURL string

	// RefreshInterval controls how often loaded layers are re-fetched.
	RefreshInterval time.Duration

	// TickInterval is the playback frame advance period.
	TickInterval time.Duration

	// AnimationFrames is how many frames to request per source when
	// starting an animation.
	AnimationFrames int

	// Forecast playback: number of lead times and minutes between them.
	ForecastLeadTimes int
	ForecastStepMin   int

	// Overlay opacity applied to newly attached layers.
	OverlayOpacity float64

	// Local frame archive retention.
	ArchiveDir    string
	ArchiveMaxAge time.Duration

	// Preferences and session files live here; empty means the
	// OS-specific user config dir.
	PrefsDir string

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.UpstreamBaseURL = getenvDefault("RADAR_UPSTREAM_URL", "https://radar.weather.gov")

	// Auto-refresh interval: default 5 minutes, matching the upstream
	// scan cadence.
	intervalStr := getenvDefault("REFRESH_INTERVAL", "5m")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %w", err)
	}
	cfg.RefreshInterval = interval

	tickStr := getenvDefault("TICK_INTERVAL", "500ms")
	tick, err := time.ParseDuration(tickStr)
	if err != nil {
		return nil, fmt.Errorf("invalid TICK_INTERVAL: %w", err)
	}
	cfg.TickInterval = tick

	cfg.AnimationFrames = getenvInt("ANIMATION_FRAMES", 6)
	cfg.ForecastLeadTimes = getenvInt("FORECAST_LEAD_TIMES", 6)
	cfg.ForecastStepMin = getenvInt("FORECAST_STEP_MIN", 5)

	opacityStr := getenvDefault("OVERLAY_OPACITY", "0.8")
	opacity, err := strconv.ParseFloat(opacityStr, 64)
	if err != nil || opacity <= 0 || opacity > 1 {
		return nil, fmt.Errorf("invalid OVERLAY_OPACITY: %q", opacityStr)
	}
	cfg.OverlayOpacity = opacity

	cfg.ArchiveDir = getenvDefault("ARCHIVE_DIR", defaultArchiveDir())

	maxAgeStr := getenvDefault("ARCHIVE_MAX_AGE", "1h")
	maxAge, err := time.ParseDuration(maxAgeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid ARCHIVE_MAX_AGE: %w", err)
	}
	cfg.ArchiveMaxAge = maxAge

	cfg.PrefsDir = os.Getenv("PREFS_DIR")
	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func defaultArchiveDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "radar_cache"
	}
	return dir + string(os.PathSeparator) + "radarsync"
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
