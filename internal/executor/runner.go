// Package executor turns a source submission into a classified outcome:
// validate-only languages are checked in-process, everything else is
// written to a scratch directory and run through a sandbox.
package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/michaelbrown/codecollab/internal/logger"
	"github.com/michaelbrown/codecollab/internal/sandbox"
	"github.com/michaelbrown/codecollab/internal/toolchain"
)

// ErrEmptySource is returned when a request carries no code.
var ErrEmptySource = errors.New("code is required")

const (
	noOutput        = "No output"
	truncatedMarker = "\n... (output truncated)"
)

// Runner executes requests. It is safe for concurrent use; invocations share
// only the scratch directory and never each other's files.
type Runner struct {
	registry   *toolchain.Registry
	sandbox    sandbox.Sandbox
	classifier *Classifier
	scratchDir string
	timeout    time.Duration
	log        *zap.SugaredLogger

	scratchMu    sync.Mutex
	scratchReady bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithRegistry sets the toolchain registry.
func WithRegistry(r *toolchain.Registry) Option {
	return func(rn *Runner) { rn.registry = r }
}

// WithSandbox sets the sandbox used for all steps.
func WithSandbox(sb sandbox.Sandbox) Option {
	return func(rn *Runner) { rn.sandbox = sb }
}

// WithClassifier sets the diagnostics classifier.
func WithClassifier(c *Classifier) Option {
	return func(rn *Runner) { rn.classifier = c }
}

// WithScratchDir sets the directory that holds per-invocation artifacts.
func WithScratchDir(dir string) Option {
	return func(rn *Runner) { rn.scratchDir = dir }
}

// WithTimeout sets the wall-clock budget for one invocation.
func WithTimeout(d time.Duration) Option {
	return func(rn *Runner) { rn.timeout = d }
}

// New creates a Runner. Defaults: built-in registry, host process sandbox,
// embedded diagnostics, 10s timeout, scratch under the system temp dir.
func New(opts ...Option) *Runner {
	r := &Runner{
		timeout:    10 * time.Second,
		scratchDir: filepath.Join(os.TempDir(), "codecollab"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = toolchain.Default()
	}
	if r.sandbox == nil {
		policy := sandbox.DefaultPolicy()
		policy.MaxTimeout = r.timeout
		r.sandbox = sandbox.NewProcessSandbox(policy)
	}
	if r.classifier == nil {
		r.classifier = DefaultClassifier()
	}
	// Expanded paths must be absolute for the docker bind mount.
	if abs, err := filepath.Abs(r.scratchDir); err == nil {
		r.scratchDir = abs
	}
	r.log = logger.ComponentLogger("executor")
	return r
}

// Registry returns the registry requests are resolved against.
func (r *Runner) Registry() *toolchain.Registry {
	return r.registry
}

// Run executes one request. The error return is reserved for rejected input
// (ErrEmptySource, toolchain.ErrUnsupported) and internal failures; every
// outcome of the user's code, including failures, is an Outcome.
func (r *Runner) Run(ctx context.Context, req Request) (Outcome, error) {
	if strings.TrimSpace(req.Source) == "" {
		return Outcome{}, ErrEmptySource
	}
	tc, err := r.registry.Resolve(req.Language)
	if err != nil {
		return Outcome{}, err
	}

	if tc.Validate != nil {
		res := tc.Validate(req.Source)
		if !res.Valid {
			return Outcome{
				Kind:  KindValidationFailed,
				Text:  tc.ErrorHeading + ":\n" + strings.Join(res.Errors, "\n"),
				Stage: StageValidate,
			}, nil
		}
		if tc.Kind == toolchain.ValidateOnly {
			return Outcome{Kind: KindSuccess, Text: tc.SuccessMessage, Stage: StageValidate}, nil
		}
	}

	strategy, err := strategyFor(tc.Kind)
	if err != nil {
		return Outcome{}, err
	}
	if err := r.ensureScratch(); err != nil {
		return Outcome{}, err
	}

	art := newArtifact(r.scratchDir, tc)
	defer func() {
		if err := strategy.Cleanup(art); err != nil {
			r.log.Warnw("artifact cleanup failed",
				logger.FieldArtifact, art.Base,
				logger.FieldError, err,
			)
		}
	}()

	if err := strategy.Prepare(art, req.Source); err != nil {
		return Outcome{}, err
	}

	opts := sandbox.ExecOpts{
		Steps:   tc.Steps(art.vars()),
		Workdir: r.scratchDir,
		Image:   tc.Image,
		Timeout: r.timeout,
	}
	res, err := strategy.Invoke(ctx, r.sandbox, opts)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, errors.Wrap(err, "execution abandoned")
		}
		if errors.Is(err, sandbox.ErrUnavailable) {
			return Outcome{}, err
		}
		out := r.startFailure(tc, art, err)
		r.logOutcome(tc, art, out)
		return out, nil
	}

	out := r.outcome(tc, art, strategy, res)
	r.logOutcome(tc, art, out)
	return out, nil
}

func (r *Runner) ensureScratch() error {
	r.scratchMu.Lock()
	defer r.scratchMu.Unlock()
	if r.scratchReady {
		return nil
	}
	if err := os.MkdirAll(r.scratchDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating scratch directory %s", r.scratchDir)
	}
	r.scratchReady = true
	return nil
}

func (r *Runner) startFailure(tc toolchain.Toolchain, art *Artifact, err error) Outcome {
	if errors.Is(err, exec.ErrNotFound) {
		out := r.classifier.Missing(tc.Language)
		out.ExitCode = -1
		return out
	}
	out := r.classifier.Classify(tc.Language, art.scrub(err.Error(), tc))
	out.ExitCode = -1
	return out
}

func (r *Runner) outcome(tc toolchain.Toolchain, art *Artifact, strategy Strategy, res *sandbox.ExecResult) Outcome {
	out := Outcome{
		ExitCode:  res.ExitCode,
		Duration:  res.Duration,
		Truncated: res.Truncated,
		Stage:     strategy.Stage(res.Step),
	}

	switch {
	case res.TimedOut:
		out.Kind = KindTimedOut
		out.Text = timeoutText(r.timeout)
		return out

	case res.ExitCode == 0:
		out.Kind = KindSuccess
		out.Text = firstNonEmpty(res.Stdout, res.Stderr, noOutput)

	default:
		raw := firstNonEmpty(res.Stderr, res.Stdout, fmt.Sprintf("exit status %d", res.ExitCode))
		classified := r.classifier.Classify(tc.Language, art.scrub(raw, tc))
		out.Kind = classified.Kind
		out.Text = classified.Text
	}

	if res.Truncated && out.Kind != KindToolchainMissing {
		out.Text += truncatedMarker
	}
	return out
}

func (r *Runner) logOutcome(tc toolchain.Toolchain, art *Artifact, out Outcome) {
	r.log.Infow("execution finished",
		logger.FieldLanguage, tc.Language,
		logger.FieldArtifact, art.Base,
		logger.FieldKind, out.Kind,
		logger.FieldExitCode, out.ExitCode,
		logger.FieldDurationMS, out.Duration.Milliseconds(),
	)
}

func timeoutText(d time.Duration) string {
	return "Error: Execution timed out after " + humanDuration(d) + ".\n\n" +
		"This might happen if:\n" +
		"- Your code has an infinite loop\n" +
		"- The program is waiting for input\n" +
		"- The computation is taking too long\n\n" +
		"Try optimizing your code or reducing the complexity."
}

func humanDuration(d time.Duration) string {
	if d%time.Second == 0 {
		secs := int(d / time.Second)
		if secs == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", secs)
	}
	return d.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
