package mediahttp

import (
	"fmt"
	"strings"
)

// ProbeError is logged when a metadata probe fails; it never fails a download.
type ProbeError struct {
	URL string
	Err error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.URL, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// FetchError is a segment or whole-file fetch that ran out of attempts or hit
// a permanent failure. Index is -1 for a whole-file fetch.
type FetchError struct {
	Index    int
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("download failed after %d attempt(s): %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("segment %d failed after %d attempt(s): %v", e.Index, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// SegmentsError aggregates every failed segment of one file.
type SegmentsError struct {
	URL      string
	Failures []*FetchError
}

func (e *SegmentsError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return fmt.Sprintf("%d segment(s) failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

func (e *SegmentsError) Indices() []int {
	indices := make([]int, 0, len(e.Failures))
	for _, f := range e.Failures {
		indices = append(indices, f.Index)
	}
	return indices
}

func (e *SegmentsError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}

// ReassemblyError is an I/O failure while concatenating parts. Index is the
// part being copied, or -1 when the destination itself failed.
type ReassemblyError struct {
	Path  string
	Index int
	Err   error
}

func (e *ReassemblyError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("error assembling %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("error assembling %s at part %d: %v", e.Path, e.Index, e.Err)
}

func (e *ReassemblyError) Unwrap() error { return e.Err }
