package merger

import (
	"fmt"
	"strings"
)

// ValidationError rejects a batch of merge inputs before any job is queued.
type ValidationError struct {
	Videos  int
	Audios  int
	Outputs int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("mismatched merge inputs: %d video, %d audio, %d output paths", e.Videos, e.Audios, e.Outputs)
}

// EncodeError is a merge job whose encoder could not start or exited non-zero.
// ExitCode is nil when the process never ran to completion.
type EncodeError struct {
	JobID    string
	Output   string
	ExitCode *int
	Stderr   string
	Err      error
}

func (e *EncodeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "merge %s failed", e.Output)
	if e.ExitCode != nil {
		fmt.Fprintf(&b, " with exit status %d", *e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if diag := strings.TrimSpace(e.Stderr); diag != "" {
		fmt.Fprintf(&b, "\nOutput: %s", diag)
	}
	return b.String()
}

func (e *EncodeError) Unwrap() error { return e.Err }
