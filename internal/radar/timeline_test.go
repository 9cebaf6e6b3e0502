package radar

import (
	"testing"
	"time"
)

func mkFrames(code string, times ...time.Time) []Frame {
	frames := make([]Frame, 0, len(times))
	for _, ts := range times {
		frames = append(frames, Frame{SourceCode: code, Timestamp: ts})
	}
	return frames
}

func TestMergeTimestampsUnionSort(t *testing.T) {
	t0 := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(5 * time.Minute)
	t2 := t0.Add(10 * time.Minute)
	t3 := t0.Add(15 * time.Minute)

	per := map[string][]Frame{
		"KOKX": mkFrames("KOKX", t0, t1, t2),
		"KDIX": mkFrames("KDIX", t1, t3),
	}

	got := MergeTimestamps(per)
	want := []time.Time{t0, t1, t2, t3}
	if len(got) != len(want) {
		t.Fatalf("expected %d timestamps, got %d", len(want), len(got))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("timestamp %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestDownsampleFixedStride(t *testing.T) {
	t0 := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	ts := make([]time.Time, 13)
	for i := range ts {
		ts[i] = t0.Add(time.Duration(i) * time.Minute)
	}

	got := Downsample(ts)
	if len(got) != MaxSharedTimestamps {
		t.Fatalf("expected %d entries, got %d", MaxSharedTimestamps, len(got))
	}

	// n=13 gives stride 2: indices 0,2,4,6,8,10.
	wantIdx := []int{0, 2, 4, 6, 8, 10}
	for i, idx := range wantIdx {
		if !got[i].Equal(ts[idx]) {
			t.Fatalf("entry %d: expected index %d (%v), got %v", i, idx, ts[idx], got[i])
		}
	}
}

func TestDownsampleShortTimelineUntouched(t *testing.T) {
	t0 := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	ts := []time.Time{t0, t0.Add(time.Minute)}
	got := Downsample(ts)
	if len(got) != 2 {
		t.Fatalf("expected timeline to pass through, got %d entries", len(got))
	}
}

func TestNearestFrameTieIsFirstSeen(t *testing.T) {
	t0 := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	frames := mkFrames("KOKX", t0, t0.Add(5*time.Minute), t0.Add(10*time.Minute))

	// Both neighbors are equidistant from t0+2.5m; the first scanned wins.
	target := t0.Add(150 * time.Second)
	got, ok := NearestFrame(frames, target)
	if !ok {
		t.Fatalf("expected a frame")
	}
	if !got.Timestamp.Equal(t0) {
		t.Fatalf("expected tie to resolve to first frame %v, got %v", t0, got.Timestamp)
	}
}

func TestNearestFrameEmptySource(t *testing.T) {
	if _, ok := NearestFrame(nil, time.Now()); ok {
		t.Fatalf("expected no frame for an empty source")
	}
}
