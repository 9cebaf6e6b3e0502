package view

import (
	"context"
	"fmt"
	"log"

	"github.com/nexview/radarsync/internal/radar"
)

// Timeline returns the historical time buckets, oldest first, plus the
// key of the slot the view is currently snapped to (empty when live).
func (s *Session) Timeline(ctx context.Context) ([]radar.TimelineSlot, string, error) {
	slots, err := s.fetchers.Index.Slots(ctx)
	if err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	active := s.activeSlot
	s.mu.Unlock()
	return slots, active, nil
}

// LoadSlot snaps the whole registry to one historical bucket. This is
// replace-not-merge: the registry is cleared in full first, so sources
// absent from the slot disappear. Re-selecting the active slot
// re-issues the same full reload.
func (s *Session) LoadSlot(ctx context.Context, slotKey string, field radar.Field) error {
	slots, err := s.fetchers.Index.Slots(ctx)
	if err != nil {
		return err
	}

	var slot radar.TimelineSlot
	found := false
	for _, sl := range slots {
		if sl.SlotKey == slotKey {
			slot = sl
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownSlot, slotKey)
	}

	// A slot view replaces whatever playback owned the registry.
	s.player.Stop()
	epoch := s.bumpEpoch()
	s.registry.Clear()

	// One file per source: the newest scan inside the bucket wins.
	perSource := make(map[string]radar.SlotFile, len(slot.Files))
	for _, f := range slot.Files {
		if cur, ok := perSource[f.Source]; !ok || f.FileRef > cur.FileRef {
			perSource[f.Source] = f
		}
	}
	codes := make([]string, 0, len(perSource))
	for code := range perSource {
		codes = append(codes, code)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	frames, err := radar.FetchLatest(fetchCtx, codes, func(ctx context.Context, code string) (radar.Frame, error) {
		return s.fetchers.Cached.FetchCached(ctx, perSource[code], field)
	})
	if err != nil {
		return err
	}

	installed := s.installIfCurrent(epoch, frames)

	s.mu.Lock()
	s.activeSlot = slotKey
	s.mu.Unlock()

	if installed > 0 {
		if union, ok := s.registry.Bounds(); ok {
			s.surface.FitView([]radar.Bounds{union})
		}
	}
	log.Printf("INFO: slot %s loaded %d of %d sources", slotKey, installed, len(codes))
	return nil
}

// LeaveSlot returns the view to live mode without touching the
// registry; the next refresh or load repopulates it.
func (s *Session) LeaveSlot() {
	s.mu.Lock()
	s.activeSlot = ""
	s.mu.Unlock()
}
