package executor

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/michaelbrown/codecollab/internal/sandbox"
	"github.com/michaelbrown/codecollab/internal/toolchain"
)

// Strategy drives one invocation for a toolchain kind.
type Strategy interface {
	// Prepare writes the artifacts the steps need.
	Prepare(art *Artifact, src string) error
	// Invoke runs the steps in the sandbox.
	Invoke(ctx context.Context, sb sandbox.Sandbox, opts sandbox.ExecOpts) (*sandbox.ExecResult, error)
	// Stage names the step at index i.
	Stage(i int) Stage
	// Cleanup removes every artifact. It runs on all paths.
	Cleanup(art *Artifact) error
}

func strategyFor(kind toolchain.Kind) (Strategy, error) {
	switch kind {
	case toolchain.Interpreted:
		return interpreted{}, nil
	case toolchain.Compiled:
		return compiled{}, nil
	default:
		return nil, errors.Newf("no execution strategy for %s toolchains", kind)
	}
}

// interpreted runs the source file with the language runtime.
type interpreted struct{}

func (interpreted) Prepare(art *Artifact, src string) error {
	return art.writeSource(src)
}

func (interpreted) Invoke(ctx context.Context, sb sandbox.Sandbox, opts sandbox.ExecOpts) (*sandbox.ExecResult, error) {
	return sb.Exec(ctx, opts)
}

func (interpreted) Stage(int) Stage { return StageRun }

func (interpreted) Cleanup(art *Artifact) error { return art.remove() }

// compiled builds an artifact and runs it. Both steps share the timeout and a
// failure at either one ends the invocation.
type compiled struct{}

func (compiled) Prepare(art *Artifact, src string) error {
	if err := art.writeSource(src); err != nil {
		return err
	}
	if art.ClassDir != "" {
		if err := os.MkdirAll(art.ClassDir, 0o755); err != nil {
			return errors.Wrap(err, "creating class output directory")
		}
	}
	return nil
}

func (compiled) Invoke(ctx context.Context, sb sandbox.Sandbox, opts sandbox.ExecOpts) (*sandbox.ExecResult, error) {
	if len(opts.Steps) != 2 {
		return nil, errors.Newf("compiled toolchain needs 2 steps, got %d", len(opts.Steps))
	}
	return sb.Exec(ctx, opts)
}

func (compiled) Stage(i int) Stage {
	if i == 0 {
		return StageCompile
	}
	return StageRun
}

func (compiled) Cleanup(art *Artifact) error { return art.remove() }
