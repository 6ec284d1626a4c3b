package sandbox

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// waitDelay bounds how long Wait blocks on pipes held open by orphaned
// descendants after the process itself was killed.
const waitDelay = 2 * time.Second

// ProcessSandbox runs steps as host processes. Each step gets its own process
// group so a timeout kills everything the program spawned.
type ProcessSandbox struct {
	Policy Policy
}

// NewProcessSandbox creates a sandbox with the given policy.
func NewProcessSandbox(policy Policy) *ProcessSandbox {
	return &ProcessSandbox{Policy: policy}
}

func (s *ProcessSandbox) Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error) {
	return runSteps(ctx, s.Policy, opts, func(ctx context.Context, argv []string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		configureProcess(cmd)
		return cmd
	})
}

// launcher builds the command for one step.
type launcher func(ctx context.Context, argv []string) *exec.Cmd

func runSteps(ctx context.Context, policy Policy, opts ExecOpts, launch launcher) (*ExecResult, error) {
	if len(opts.Steps) == 0 {
		return nil, errors.New("no steps to execute")
	}
	for i, argv := range opts.Steps {
		if len(argv) == 0 {
			return nil, errors.Newf("step %d has an empty argv", i)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, policy.Timeout(opts.Timeout))
	defer cancel()

	start := time.Now()
	res := &ExecResult{}
	for i, argv := range opts.Steps {
		res.Step = i
		if err := runStep(ctx, policy.outputLimit(), opts, argv, launch, res); err != nil {
			return nil, err
		}
		if res.TimedOut || res.ExitCode != 0 {
			break
		}
	}
	res.Duration = time.Since(start)
	return res, nil
}

func runStep(ctx context.Context, limit int, opts ExecOpts, argv []string, launch launcher, res *ExecResult) error {
	cmd := launch(ctx, argv)
	cmd.Dir = opts.Workdir
	cmd.Stdin = strings.NewReader(opts.Stdin)

	var stdout, stderr bytes.Buffer
	outW := &limitWriter{buf: &stdout, limit: limit}
	errW := &limitWriter{buf: &stderr, limit: limit}
	cmd.Stdout = outW
	cmd.Stderr = errW

	runErr := cmd.Run()

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	res.Truncated = outW.dropped || errW.dropped
	res.ExitCode = 0

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		res.ExitCode = -1
		return nil
	case ctx.Err() != nil:
		return errors.Wrap(ctx.Err(), "execution cancelled")
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return nil
		}
		return errors.Wrapf(runErr, "starting %s", argv[0])
	}
	return nil
}

// limitWriter writes up to limit bytes to buf, then silently discards the rest.
type limitWriter struct {
	buf     *bytes.Buffer
	limit   int
	dropped bool
}

func (w *limitWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		w.dropped = w.dropped || len(p) > 0
		return len(p), nil
	}
	if len(p) > remaining {
		// Report all bytes as consumed so the copier does not fail with a
		// short write.
		w.buf.Write(p[:remaining])
		w.dropped = true
		return len(p), nil
	}
	return w.buf.Write(p)
}
