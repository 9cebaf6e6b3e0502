package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/nexview/radarsync/internal/radar"
)

// ErrNotFound is returned when no cached frame exists for a file ref.
var ErrNotFound = errors.New("no cached frame")

// slotBucket is the timeline grouping granularity: scan times are
// rounded down to 5 minutes, matching the upstream timeline index.
const slotBucket = 5 * time.Minute

// fileRef layout: KOKX_20260828T120500Z_reflectivity.json
var refPattern = regexp.MustCompile(`^([A-Z0-9]{4})_(\d{8}T\d{6}Z)_([a-z]+)\.json$`)

const refTimeLayout = "20060102T150405Z"

// Store caches fetched frames as flat JSON files and derives the
// cache timeline from them. It implements radar.CachedFetcher and
// radar.TimelineIndex.
type Store struct {
	dir      string
	maxAge   time.Duration
	maxSlots int

	mu sync.Mutex
}

// Open creates the cache directory if needed. maxAge bounds how long
// entries survive Cleanup; maxSlots caps the derived timeline.
func Open(dir string, maxAge time.Duration, maxSlots int) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	if maxSlots <= 0 {
		maxSlots = 20
	}
	return &Store{dir: dir, maxAge: maxAge, maxSlots: maxSlots}, nil
}

// FileRef returns the canonical cache key for a frame.
func FileRef(frame radar.Frame) string {
	return fmt.Sprintf("%s_%s_%s.json",
		frame.SourceCode, frame.Timestamp.UTC().Format(refTimeLayout), frame.Field)
}

// Put materializes a fetched frame into the cache. Forecast frames are
// never cached; they are synthetic and expire immediately.
func (s *Store) Put(frame radar.Frame) error {
	if frame.IsForecast {
		return nil
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	path := filepath.Join(s.dir, FileRef(frame))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cache frame: %w", err)
	}
	return nil
}

// FetchCached reads a previously materialized frame. It never
// downloads anything; a missing entry is ErrNotFound.
func (s *Store) FetchCached(_ context.Context, file radar.SlotFile, field radar.Field) (radar.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, filepath.Base(file.FileRef)))
	if err != nil {
		if os.IsNotExist(err) {
			return radar.Frame{}, fmt.Errorf("%w: %s", ErrNotFound, file.FileRef)
		}
		return radar.Frame{}, fmt.Errorf("read cached frame: %w", err)
	}

	var frame radar.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return radar.Frame{}, fmt.Errorf("decode cached frame %s: %w", file.FileRef, err)
	}
	return frame, nil
}

// Slots groups cached frames into 5-minute buckets and returns them
// oldest first, capped to the most recent maxSlots buckets.
func (s *Store) Slots(_ context.Context) ([]radar.TimelineSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("scan archive: %w", err)
	}

	type bucket struct {
		instant time.Time
		sources map[string]struct{}
		files   []radar.SlotFile
	}
	buckets := make(map[string]*bucket)

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := refPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		ts, err := time.Parse(refTimeLayout, m[2])
		if err != nil {
			continue
		}

		rounded := ts.Truncate(slotBucket)
		key := rounded.Format("2006-01-02 15:04")
		b, ok := buckets[key]
		if !ok {
			b = &bucket{instant: rounded, sources: make(map[string]struct{})}
			buckets[key] = b
		}
		b.sources[m[1]] = struct{}{}
		b.files = append(b.files, radar.SlotFile{Source: m[1], FileRef: e.Name()})
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > s.maxSlots {
		keys = keys[len(keys)-s.maxSlots:]
	}

	slots := make([]radar.TimelineSlot, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		sources := make([]string, 0, len(b.sources))
		for code := range b.sources {
			sources = append(sources, code)
		}
		sort.Strings(sources)
		sort.Slice(b.files, func(i, j int) bool { return b.files[i].FileRef < b.files[j].FileRef })

		slots = append(slots, radar.TimelineSlot{
			SlotKey:     k,
			Bucket:      b.instant,
			SourceCount: len(sources),
			Sources:     sources,
			Files:       b.files,
		})
	}
	return slots, nil
}

// FindSlot resolves a slot key against the current timeline.
func (s *Store) FindSlot(ctx context.Context, key string) (radar.TimelineSlot, error) {
	slots, err := s.Slots(ctx)
	if err != nil {
		return radar.TimelineSlot{}, err
	}
	for _, slot := range slots {
		if slot.SlotKey == key {
			return slot, nil
		}
	}
	return radar.TimelineSlot{}, fmt.Errorf("%w: slot %s", ErrNotFound, key)
}

// Cleanup removes cached frames whose scan time is older than maxAge.
// Returns the number of entries removed.
func (s *Store) Cleanup() int {
	if s.maxAge <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		log.Printf("archive cleanup: %v", err)
		return 0
	}

	cutoff := time.Now().UTC().Add(-s.maxAge)
	removed := 0
	for _, e := range entries {
		m := refPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		ts, err := time.Parse(refTimeLayout, m[2])
		if err != nil || !ts.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			log.Printf("archive cleanup: remove %s: %v", e.Name(), err)
			continue
		}
		removed++
	}
	return removed
}
