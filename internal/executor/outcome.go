package executor

import "time"

// Kind is the classification of a finished request.
type Kind string

const (
	KindSuccess          Kind = "success"
	KindValidationFailed Kind = "validation_failed"
	KindTimedOut         Kind = "timed_out"
	KindToolchainMissing Kind = "toolchain_missing"
	KindRuntimeError     Kind = "runtime_error"
)

// Stage names the step an outcome was decided in.
type Stage string

const (
	StageValidate Stage = "validate"
	StageCompile  Stage = "compile"
	StageRun      Stage = "run"
)

// Request is one execution request.
type Request struct {
	Source   string `json:"code"`
	Language string `json:"language"`
}

// Outcome is the user-facing result of a request. Text is ready to display.
type Outcome struct {
	Kind      Kind          `json:"kind"`
	Text      string        `json:"text"`
	ExitCode  int           `json:"exit_code"`
	Duration  time.Duration `json:"duration"`
	Truncated bool          `json:"truncated,omitempty"`
	Stage     Stage         `json:"stage,omitempty"`
}

// OK reports whether the request succeeded.
func (o Outcome) OK() bool {
	return o.Kind == KindSuccess
}
