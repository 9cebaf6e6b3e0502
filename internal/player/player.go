package player

import (
	"fmt"
	"sync"
	"time"

	"github.com/nexview/radarsync/internal/overlay"
	"github.com/nexview/radarsync/internal/radar"
)

// Mode is the player's session kind. Normal animation and forecast
// replay are mutually exclusive; starting one fully stops the other.
type Mode string

const (
	ModeIdle     Mode = "idle"
	ModeNormal   Mode = "normal"
	ModeForecast Mode = "forecast"
)

// DefaultTickInterval is the fixed playback period.
const DefaultTickInterval = 500 * time.Millisecond

// Status is a read-only view of the player for the UI.
type Status struct {
	Mode    Mode   `json:"mode"`
	Playing bool   `json:"playing"`
	Index   int    `json:"index"`
	Length  int    `json:"length"`
	Label   string `json:"label"`
}

// Player drives time-stepped replay of the shared timeline against the
// layer registry. At most one periodic driver is ever alive; loading a
// new session cancels the previous driver before installing its own.
type Player struct {
	registry *overlay.Registry
	interval time.Duration

	mu         sync.Mutex
	mode       Mode
	playing    bool
	timestamps []time.Time
	index      int

	// Normal mode: per-source frame caches resolved by nearest match.
	perSource map[string][]radar.Frame

	// Forecast mode: frames aligned one-to-one with the timeline.
	forecast []radar.Frame

	stopDriver chan struct{}
}

func New(registry *overlay.Registry, interval time.Duration) *Player {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Player{
		registry: registry,
		interval: interval,
		mode:     ModeIdle,
	}
}

// Load enters a normal animation session: frame 0 is materialized into
// the registry immediately and cyclic playback starts.
func (p *Player) Load(shared []time.Time, perSource map[string][]radar.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	if len(shared) == 0 {
		return
	}

	p.mode = ModeNormal
	p.timestamps = shared
	p.perSource = perSource
	p.index = 0
	p.playing = true
	p.materializeLocked()
	p.startDriverLocked()
}

// LoadForecast enters a forecast session for a single source. Frame
// resolution is a direct index into frames, which are already aligned
// with their lead times.
func (p *Player) LoadForecast(frames []radar.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	if len(frames) == 0 {
		return
	}

	ts := make([]time.Time, len(frames))
	for i, f := range frames {
		ts[i] = f.Timestamp
	}

	p.mode = ModeForecast
	p.timestamps = ts
	p.forecast = frames
	p.index = 0
	p.playing = true
	p.materializeLocked()
	p.startDriverLocked()
}

// Tick advances one step, wrapping modulo the timeline length, and
// re-materializes the new index. Playback is cyclic, not one-shot.
func (p *Player) Tick() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stepLocked(1)
}

// Seek steps manually by delta (typically ±1), wrapping modulo length.
// Usable while playing or paused; does not alter the playing flag.
func (p *Player) Seek(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stepLocked(delta)
}

// Pause suspends automatic ticking without resetting the index or the
// periodic driver.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != ModeIdle {
		p.playing = false
	}
}

// Resume continues automatic ticking from the current index.
func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != ModeIdle {
		p.playing = true
	}
}

// Stop cancels the driver and discards the per-source frame caches,
// the forecast frames and the shared timeline. Idempotent.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Active reports whether an animation or forecast session is loaded.
func (p *Player) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode != ModeIdle
}

// Status returns the current playback state. The label shows lead time
// (+N min) in forecast mode and a wall-clock timestamp otherwise.
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := Status{
		Mode:    p.mode,
		Playing: p.playing,
		Index:   p.index,
		Length:  len(p.timestamps),
	}
	switch p.mode {
	case ModeForecast:
		st.Label = fmt.Sprintf("+%d min", p.forecast[p.index].LeadTimeMinutes)
	case ModeNormal:
		st.Label = p.timestamps[p.index].UTC().Format("2006-01-02 15:04 UTC")
	}
	return st
}

func (p *Player) stepLocked(delta int) {
	n := len(p.timestamps)
	if p.mode == ModeIdle || n == 0 {
		return
	}
	p.index = ((p.index+delta)%n + n) % n
	p.materializeLocked()
}

// materializeLocked swaps the registry to the frames for the current
// index.
func (p *Player) materializeLocked() {
	switch p.mode {
	case ModeNormal:
		target := p.timestamps[p.index]
		for _, frames := range p.perSource {
			if frame, ok := radar.NearestFrame(frames, target); ok {
				p.registry.Install(frame)
			}
		}
	case ModeForecast:
		p.registry.Install(p.forecast[p.index])
	}
}

// startDriverLocked launches the periodic driver, cancelling any
// previous one first so two timers can never overlap.
func (p *Player) startDriverLocked() {
	if p.stopDriver != nil {
		close(p.stopDriver)
	}
	stop := make(chan struct{})
	p.stopDriver = stop

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				p.mu.Lock()
				if p.playing {
					p.stepLocked(1)
				}
				p.mu.Unlock()
			}
		}
	}()
}

func (p *Player) stopLocked() {
	if p.stopDriver != nil {
		close(p.stopDriver)
		p.stopDriver = nil
	}
	p.mode = ModeIdle
	p.playing = false
	p.timestamps = nil
	p.perSource = nil
	p.forecast = nil
	p.index = 0
}
