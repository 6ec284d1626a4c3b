package sandbox

import (
	"slices"
	"time"
)

// Policy defines resource limits for sandbox execution.
type Policy struct {
	MaxMemory  string        // Docker memory limit (e.g. "256m")
	MaxTimeout time.Duration // Maximum execution time across all steps
	MaxOutput  int           // Bytes kept per stream
	Network    bool          // Whether network access is allowed (docker only)
	Images     []string      // Allowed Docker images
}

// DefaultPolicy returns safe defaults for code execution.
func DefaultPolicy() Policy {
	return Policy{
		MaxMemory:  "256m",
		MaxTimeout: 10 * time.Second,
		MaxOutput:  1 << 20,
		Network:    false,
		Images: []string{
			"python:3.12-slim",
			"node:22-slim",
			"golang:1.23-alpine",
			"ruby:3.3-slim",
			"php:8.3-cli",
			"gcc:14",
			"rust:1-slim",
			"eclipse-temurin:21",
		},
	}
}

// IsImageAllowed checks if an image is on the allowlist.
func (p Policy) IsImageAllowed(image string) bool {
	return slices.Contains(p.Images, image)
}

// Timeout clamps a requested timeout to the policy maximum.
func (p Policy) Timeout(requested time.Duration) time.Duration {
	if requested <= 0 || (p.MaxTimeout > 0 && requested > p.MaxTimeout) {
		return p.MaxTimeout
	}
	return requested
}

func (p Policy) outputLimit() int {
	if p.MaxOutput <= 0 {
		return DefaultPolicy().MaxOutput
	}
	return p.MaxOutput
}
