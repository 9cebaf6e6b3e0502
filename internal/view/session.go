// Package view hosts the viewer session: the process-scoped object
// owning the layer registry, the animation player, the current shape
// selection and the active cache slot. All mutation paths funnel
// through it.
package view

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/nexview/radarsync/internal/overlay"
	"github.com/nexview/radarsync/internal/player"
	"github.com/nexview/radarsync/internal/radar"
	"github.com/nexview/radarsync/internal/source"
)

var (
	// ErrUnknownStation marks a station code absent from the catalog.
	ErrUnknownStation = errors.New("unknown station")

	// ErrUnknownSlot marks a timeline key with no archived bucket.
	ErrUnknownSlot = errors.New("unknown timeline slot")
)

// Fetchers bundles the upstream and cache read paths the session
// depends on.
type Fetchers struct {
	Image    radar.ImageFetcher
	Series   radar.SeriesFetcher
	Forecast radar.ForecastFetcher
	Cached   radar.CachedFetcher
	Index    radar.TimelineIndex
}

// FrameCache is the write side of the local archive.
type FrameCache interface {
	Put(frame radar.Frame) error
}

// Config tunes session-wide fetch behaviour.
type Config struct {
	FrameCount   int           // animation frames requested per source
	LeadTimes    int           // forecast steps
	StepMinutes  int           // forecast step size
	FetchTimeout time.Duration // per-batch bound on outbound calls
}

func (c Config) withDefaults() Config {
	if c.FrameCount <= 0 {
		c.FrameCount = 6
	}
	if c.LeadTimes <= 0 {
		c.LeadTimes = 6
	}
	if c.StepMinutes <= 0 {
		c.StepMinutes = 5
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	return c
}

// Session is the viewer engine. Its mutex is the event loop: state
// decisions happen under it, network waits happen outside it, and
// completions re-check the epoch before touching the registry so a
// fetch started under a previous mode is absorbed, not applied.
type Session struct {
	catalog  *source.Catalog
	registry *overlay.Registry
	surface  overlay.Surface
	player   *player.Player
	fetchers Fetchers
	cache    FrameCache
	cfg      Config

	mu         sync.Mutex
	epoch      uint64
	selection  map[string]struct{}
	activeSlot string
}

func NewSession(catalog *source.Catalog, registry *overlay.Registry, surface overlay.Surface,
	pl *player.Player, fetchers Fetchers, cache FrameCache, cfg Config) *Session {
	return &Session{
		catalog:   catalog,
		registry:  registry,
		surface:   surface,
		player:    pl,
		fetchers:  fetchers,
		cache:     cache,
		cfg:       cfg.withDefaults(),
		selection: make(map[string]struct{}),
	}
}

// Registry exposes the layer registry for read paths.
func (s *Session) Registry() *overlay.Registry { return s.registry }

// Player exposes playback controls.
func (s *Session) Player() *player.Player { return s.player }

// resolve validates a station code against the catalog.
func (s *Session) resolve(code string) (source.Source, error) {
	st, ok := s.catalog.Get(code)
	if !ok {
		return source.Source{}, fmt.Errorf("%w: %s", ErrUnknownStation, code)
	}
	return st, nil
}

func (s *Session) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// bumpEpoch invalidates in-flight batches. Called on stop, clear and
// mode switches.
func (s *Session) bumpEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	return s.epoch
}

// installIfCurrent applies fetched frames unless the session moved on
// since the batch started. Returns how many layers were installed.
func (s *Session) installIfCurrent(epoch uint64, frames []radar.Frame) int {
	s.mu.Lock()
	stale := s.epoch != epoch
	s.mu.Unlock()
	if stale {
		log.Printf("INFO: dropping %d frames from a superseded fetch", len(frames))
		return 0
	}

	for _, f := range frames {
		s.registry.Install(f)
	}
	return len(frames)
}

// LoadSource fetches the latest frame for one station and installs it.
func (s *Session) LoadSource(ctx context.Context, code string, field radar.Field) error {
	st, err := s.resolve(code)
	if err != nil {
		return err
	}

	epoch := s.currentEpoch()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	frame, err := s.fetchers.Image.FetchImage(ctx, st.Code, field)
	if err != nil {
		return &radar.SourceFetchError{Source: st.Code, Err: err}
	}

	if s.installIfCurrent(epoch, []radar.Frame{frame}) > 0 {
		s.cachePut(frame)
	}
	return nil
}

// RemoveSource drops one station's layer. No-op if absent.
func (s *Session) RemoveSource(code string) error {
	st, err := s.resolve(code)
	if err != nil {
		return err
	}
	s.registry.Remove(st.Code)
	return nil
}

// Clear stops playback and empties the registry.
func (s *Session) Clear() {
	s.player.Stop()
	s.bumpEpoch()
	s.registry.Clear()
}

// RefreshAll re-fetches every loaded source with its current field.
// Partial failure keeps the stale layers for the failing sources; a
// fully failed batch leaves the registry untouched and surfaces
// AllSourcesFailedError.
func (s *Session) RefreshAll(ctx context.Context) error {
	layers := s.registry.Snapshot()
	if len(layers) == 0 {
		return nil
	}

	fields := make(map[string]radar.Field, len(layers))
	codes := make([]string, 0, len(layers))
	for _, l := range layers {
		fields[l.SourceCode] = l.Field
		codes = append(codes, l.SourceCode)
	}

	epoch := s.currentEpoch()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	frames, err := radar.FetchLatest(ctx, codes, func(ctx context.Context, code string) (radar.Frame, error) {
		return s.fetchers.Image.FetchImage(ctx, code, fields[code])
	})
	if err != nil {
		return err
	}

	if s.installIfCurrent(epoch, frames) > 0 {
		for _, f := range frames {
			s.cachePut(f)
		}
	}
	return nil
}

// AutoRefresh is the periodic variant: it skips while an animation or
// forecast session owns the registry.
func (s *Session) AutoRefresh(ctx context.Context) error {
	if s.player.Active() {
		log.Printf("INFO: auto-refresh skipped, playback active")
		return nil
	}
	return s.RefreshAll(ctx)
}

// StartAnimation fetches frame series for the stations, merges them
// into the shared timeline and starts cyclic playback. Any running
// animation or forecast session is fully stopped first.
func (s *Session) StartAnimation(ctx context.Context, codes []string, field radar.Field) error {
	resolved := make([]string, 0, len(codes))
	for _, code := range codes {
		st, err := s.resolve(code)
		if err != nil {
			return err
		}
		resolved = append(resolved, st.Code)
	}
	if len(resolved) == 0 {
		return fmt.Errorf("no stations requested")
	}

	s.player.Stop()
	epoch := s.bumpEpoch()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	perSource, err := radar.FetchEach(ctx, resolved, func(ctx context.Context, code string) ([]radar.Frame, error) {
		return s.fetchers.Series.FetchSeries(ctx, code, field, s.cfg.FrameCount)
	})
	if err != nil {
		return err
	}

	shared := radar.MergeTimestamps(perSource)
	if len(shared) == 0 {
		return fmt.Errorf("%w: no frames across %d stations", radar.ErrEmptyResult, len(resolved))
	}

	s.mu.Lock()
	stale := s.epoch != epoch
	s.mu.Unlock()
	if stale {
		log.Printf("INFO: dropping superseded animation batch")
		return nil
	}

	for _, frames := range perSource {
		for _, f := range frames {
			s.cachePut(f)
		}
	}
	s.player.Load(shared, perSource)
	return nil
}

// StartForecast fetches a single station's forecast frames and plays
// them back by direct index. Mutually exclusive with normal animation.
// leadTimes and stepMinutes fall back to the configured defaults when
// zero.
func (s *Session) StartForecast(ctx context.Context, code string, field radar.Field, leadTimes, stepMinutes int) error {
	st, err := s.resolve(code)
	if err != nil {
		return err
	}
	if leadTimes <= 0 {
		leadTimes = s.cfg.LeadTimes
	}
	if stepMinutes <= 0 {
		stepMinutes = s.cfg.StepMinutes
	}

	s.player.Stop()
	epoch := s.bumpEpoch()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	frames, err := s.fetchers.Forecast.FetchForecast(ctx, st.Code, field, leadTimes, stepMinutes)
	if err != nil {
		return err
	}

	s.mu.Lock()
	stale := s.epoch != epoch
	s.mu.Unlock()
	if stale {
		log.Printf("INFO: dropping superseded forecast batch")
		return nil
	}

	s.player.LoadForecast(frames)
	return nil
}

// StopPlayback stops any animation or forecast session and discards
// its caches. Idempotent.
func (s *Session) StopPlayback() {
	s.player.Stop()
	s.bumpEpoch()
}

// Restore reloads the previous run's layers. Per-source failures are
// logged and skipped; a fully failed restore is logged, not fatal.
func (s *Session) Restore(ctx context.Context, records []overlay.Record) {
	if len(records) == 0 {
		return
	}

	fields := make(map[string]radar.Field, len(records))
	codes := make([]string, 0, len(records))
	for _, r := range records {
		if _, err := s.resolve(r.Source); err != nil {
			log.Printf("restore: %v", err)
			continue
		}
		fields[r.Source] = r.Field
		codes = append(codes, r.Source)
	}

	epoch := s.currentEpoch()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	frames, err := radar.FetchLatest(ctx, codes, func(ctx context.Context, code string) (radar.Frame, error) {
		return s.fetchers.Image.FetchImage(ctx, code, fields[code])
	})
	if err != nil {
		log.Printf("restore: %v", err)
		return
	}

	n := s.installIfCurrent(epoch, frames)
	log.Printf("INFO: restored %d of %d layers from previous session", n, len(records))
}

func (s *Session) cachePut(frame radar.Frame) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(frame); err != nil {
		log.Printf("cache frame %s: %v", frame.SourceCode, err)
	}
}

// sortedSelection returns the highlighted codes, sorted. Caller holds
// no lock.
func (s *Session) sortedSelection() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.selection))
	for code := range s.selection {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
