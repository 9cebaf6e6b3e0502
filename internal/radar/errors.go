package radar

import (
	"errors"
	"fmt"
)

// ErrEmptyResult indicates the upstream responded but produced no
// frames. Surfaced distinctly from a transport failure.
var ErrEmptyResult = errors.New("upstream produced no frames")

// SourceFetchError wraps a network or parse failure for one source.
// Recovered locally: the source is omitted from the batch result.
type SourceFetchError struct {
	Source string
	Err    error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// AllSourcesFailedError means every fetch in a batch failed. The
// operation is aborted and the registry left unchanged.
type AllSourcesFailedError struct {
	Failures []*SourceFetchError
}

func (e *AllSourcesFailedError) Error() string {
	return fmt.Sprintf("all %d sources failed (first: %v)", len(e.Failures), e.Failures[0])
}

// IsAllFailed reports whether err is an AllSourcesFailedError.
func IsAllFailed(err error) bool {
	var all *AllSourcesFailedError
	return errors.As(err, &all)
}
