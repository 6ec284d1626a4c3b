package executor

import (
	"github.com/michaelbrown/codecollab/internal/config"
	"github.com/michaelbrown/codecollab/internal/sandbox"
)

// NewFromConfig builds a Runner whose sandbox, limits and scratch directory
// come from the execution section of the configuration.
func NewFromConfig(cfg config.ExecutionConfig) *Runner {
	return New(
		WithSandbox(SandboxFromConfig(cfg)),
		WithScratchDir(cfg.ScratchDir),
		WithTimeout(cfg.Timeout),
	)
}

// SandboxFromConfig returns the sandbox selected by cfg.Sandbox.
func SandboxFromConfig(cfg config.ExecutionConfig) sandbox.Sandbox {
	policy := sandbox.DefaultPolicy()
	policy.MaxTimeout = cfg.Timeout
	policy.MaxOutput = cfg.MaxOutput

	if cfg.Sandbox == config.SandboxDocker {
		policy.MaxMemory = cfg.Docker.Memory
		policy.Network = cfg.Docker.Network
		return sandbox.NewDockerSandbox(policy)
	}
	return sandbox.NewProcessSandbox(policy)
}
