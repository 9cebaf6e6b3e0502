package radar

import (
	"context"
	"log"
	"sync"
)

// BatchFunc fetches the frames for a single source within a batch.
type BatchFunc func(ctx context.Context, code string) ([]Frame, error)

// FetchEach fans out one fetch per source and joins with
// wait-for-all, tolerate-individual-failure semantics: each failure is
// logged and that source omitted from the result. Only a fully failed
// batch returns an error (AllSourcesFailedError), so the visible
// result is always the union of successes.
func FetchEach(ctx context.Context, sources []string, fetch BatchFunc) (map[string][]Frame, error) {
	results := make(map[string][]Frame, len(sources))
	if len(sources) == 0 {
		return results, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []*SourceFetchError
	)

	for _, code := range sources {
		code := code
		wg.Add(1)
		go func() {
			defer wg.Done()

			frames, err := fetch(ctx, code)
			if err != nil {
				// Log and continue; we want partial success when possible.
				log.Printf("source %s fetch failed: %v", code, err)
				mu.Lock()
				failures = append(failures, &SourceFetchError{Source: code, Err: err})
				mu.Unlock()
				return
			}

			mu.Lock()
			results[code] = frames
			mu.Unlock()
		}()
	}

	wg.Wait()

	if len(results) == 0 {
		return nil, &AllSourcesFailedError{Failures: failures}
	}
	return results, nil
}

// FetchLatest is FetchEach for single-frame batches. Successful frames
// come back in the order the sources were requested.
func FetchLatest(ctx context.Context, sources []string, fetch func(ctx context.Context, code string) (Frame, error)) ([]Frame, error) {
	per, err := FetchEach(ctx, sources, func(ctx context.Context, code string) ([]Frame, error) {
		f, err := fetch(ctx, code)
		if err != nil {
			return nil, err
		}
		return []Frame{f}, nil
	})
	if err != nil {
		return nil, err
	}

	frames := make([]Frame, 0, len(per))
	for _, code := range sources {
		if fs, ok := per[code]; ok && len(fs) > 0 {
			frames = append(frames, fs[0])
		}
	}
	return frames, nil
}
