// Package sandbox runs untrusted programs with a timeout and an output cap.
package sandbox

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrUnavailable means the sandbox itself cannot run anything, as opposed to
// a step whose program is missing.
var ErrUnavailable = errors.New("sandbox unavailable")

// ExecOpts describes one execution. Steps run in order inside Workdir and a
// step only starts when the previous one exited 0. All steps share a single
// deadline.
type ExecOpts struct {
	Steps   [][]string
	Workdir string
	Stdin   string
	Image   string        // Docker image, ignored by the process sandbox
	Timeout time.Duration // capped by Policy.MaxTimeout; zero means the maximum
}

// ExecResult is the output of the last step that ran.
type ExecResult struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	TimedOut  bool
	Truncated bool
	Step      int // index into ExecOpts.Steps
	Duration  time.Duration
}

// Sandbox runs code in an isolated environment. Exec returns an error only
// when a step could not be started or the caller's context ended; non-zero
// exits and timeouts are reported in the result.
type Sandbox interface {
	Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error)
}
