package radar

import (
	"sort"
	"time"
)

// MaxSharedTimestamps bounds the shared animation timeline. Six frames
// keep both network and rendering cost flat regardless of how many
// sources take part.
const MaxSharedTimestamps = 6

// MergeTimestamps fuses per-source frame sequences into one shared
// timeline: the duplicate-free union of all frame timestamps, sorted
// ascending, downsampled to at most MaxSharedTimestamps entries.
//
// Sources scan at independent, slightly offset cadences, so an exact
// timestamp intersection would frequently be empty; playback resolves
// each shared instant per source with NearestFrame instead.
func MergeTimestamps(perSource map[string][]Frame) []time.Time {
	seen := make(map[int64]time.Time)
	for _, frames := range perSource {
		for _, f := range frames {
			ts := f.Timestamp.UTC()
			seen[ts.UnixNano()] = ts
		}
	}

	merged := make([]time.Time, 0, len(seen))
	for _, ts := range seen {
		merged = append(merged, ts)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Before(merged[j]) })

	return Downsample(merged)
}

// Downsample reduces a sorted timeline to MaxSharedTimestamps entries
// by taking every floor(n/6)-th element starting at index 0, then
// truncating to the first six picks. The fixed stride intentionally
// under-represents the tail when n/6 is not exact; clients depend on
// the exact selection.
func Downsample(ts []time.Time) []time.Time {
	if len(ts) <= MaxSharedTimestamps {
		return ts
	}

	stride := len(ts) / MaxSharedTimestamps
	out := make([]time.Time, 0, MaxSharedTimestamps)
	for i := 0; i < len(ts) && len(out) < MaxSharedTimestamps; i += stride {
		out = append(out, ts[i])
	}
	return out
}

// NearestFrame picks the frame minimizing |frame.Timestamp - target|.
// On an exact tie the first-scanned frame wins. Returns false when the
// source has no frames; that source simply contributes no layer for
// the tick.
func NearestFrame(frames []Frame, target time.Time) (Frame, bool) {
	if len(frames) == 0 {
		return Frame{}, false
	}

	best := 0
	bestDist := absDuration(frames[0].Timestamp.Sub(target))
	for i := 1; i < len(frames); i++ {
		d := absDuration(frames[i].Timestamp.Sub(target))
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return frames[best], true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
