package sandbox

import (
	"context"
	"os/exec"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// DockerSandbox runs each step in a throwaway container. The workdir is
// mounted at the same path inside the container so expanded paths stay valid.
type DockerSandbox struct {
	Policy Policy
	// Binary is the docker CLI, "docker" when empty.
	Binary string
}

// NewDockerSandbox creates a sandbox with the given policy.
func NewDockerSandbox(policy Policy) *DockerSandbox {
	return &DockerSandbox{Policy: policy}
}

func (d *DockerSandbox) Exec(ctx context.Context, opts ExecOpts) (*ExecResult, error) {
	if !d.Policy.IsImageAllowed(opts.Image) {
		return nil, errors.Newf("image %q not in allowlist", opts.Image)
	}
	if opts.Workdir == "" {
		return nil, errors.New("docker sandbox requires a workdir")
	}
	if _, err := exec.LookPath(d.binary()); err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "docker CLI %q: %s", d.binary(), err.Error())
	}

	return runSteps(ctx, d.Policy, opts, func(ctx context.Context, argv []string) *exec.Cmd {
		name := "codecollab-" + uuid.NewString()
		cmd := exec.CommandContext(ctx, d.binary(), d.runArgs(name, opts, argv)...)
		configureProcess(cmd)

		// Killing the CLI leaves the container running.
		killGroup := cmd.Cancel
		cmd.Cancel = func() error {
			killCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = exec.CommandContext(killCtx, d.binary(), "kill", name).Run()
			if killGroup != nil {
				return killGroup()
			}
			return cmd.Process.Kill()
		}
		return cmd
	})
}

func (d *DockerSandbox) runArgs(name string, opts ExecOpts, argv []string) []string {
	args := []string{
		"run", "--rm", "-i",
		"--name", name,
		"--pids-limit", "256",
		"-v", opts.Workdir + ":" + opts.Workdir,
		"-w", opts.Workdir,
	}
	if d.Policy.MaxMemory != "" {
		args = append(args, "--memory", d.Policy.MaxMemory)
	}
	if !d.Policy.Network {
		args = append(args, "--network=none")
	}
	args = append(args, opts.Image)
	return append(args, argv...)
}

func (d *DockerSandbox) binary() string {
	if d.Binary != "" {
		return d.Binary
	}
	return "docker"
}
