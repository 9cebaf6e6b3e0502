package radar

import "context"

// ImageFetcher produces the latest single frame for a source.
type ImageFetcher interface {
	FetchImage(ctx context.Context, code string, field Field) (Frame, error)
}

// SeriesFetcher produces up to count recent frames for a source,
// ordered oldest first.
type SeriesFetcher interface {
	FetchSeries(ctx context.Context, code string, field Field, count int) ([]Frame, error)
}

// ForecastFetcher produces extrapolated frames for a single source.
// Frames are ordered by lead time and aligned one-to-one with the
// forecast timeline.
type ForecastFetcher interface {
	FetchForecast(ctx context.Context, code string, field Field, leadTimes, stepMinutes int) ([]Frame, error)
}

// CachedFetcher reads a previously materialized frame without
// re-downloading anything.
type CachedFetcher interface {
	FetchCached(ctx context.Context, file SlotFile, field Field) (Frame, error)
}

// TimelineIndex lists historical time buckets, oldest first.
type TimelineIndex interface {
	Slots(ctx context.Context) ([]TimelineSlot, error)
}
