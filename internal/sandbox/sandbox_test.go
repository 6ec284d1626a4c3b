package sandbox

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func sh(script string) []string {
	return []string{"sh", "-c", script}
}

func TestProcessSandbox_Stdout(t *testing.T) {
	requireShell(t)
	sb := NewProcessSandbox(DefaultPolicy())

	res, err := sb.Exec(context.Background(), ExecOpts{Steps: [][]string{sh("echo hi; echo oops >&2")}})
	require.NoError(t, err)
	assert.Equal(t, "hi\n", res.Stdout)
	assert.Equal(t, "oops\n", res.Stderr)
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.TimedOut)
	assert.False(t, res.Truncated)
}

func TestProcessSandbox_ExitCode(t *testing.T) {
	requireShell(t)
	sb := NewProcessSandbox(DefaultPolicy())

	res, err := sb.Exec(context.Background(), ExecOpts{Steps: [][]string{sh("exit 3")}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
}

func TestProcessSandbox_StepsStopOnFailure(t *testing.T) {
	requireShell(t)
	sb := NewProcessSandbox(DefaultPolicy())

	res, err := sb.Exec(context.Background(), ExecOpts{Steps: [][]string{
		sh("echo compile failed >&2; exit 1"),
		sh("echo never"),
	}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Step)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "compile failed\n", res.Stderr)
	assert.Empty(t, res.Stdout)
}

func TestProcessSandbox_LastStepOutput(t *testing.T) {
	requireShell(t)
	sb := NewProcessSandbox(DefaultPolicy())

	res, err := sb.Exec(context.Background(), ExecOpts{Steps: [][]string{sh("echo a"), sh("echo b")}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Step)
	assert.Equal(t, "b\n", res.Stdout)
}

func TestProcessSandbox_Timeout(t *testing.T) {
	requireShell(t)
	sb := NewProcessSandbox(DefaultPolicy())

	res, err := sb.Exec(context.Background(), ExecOpts{
		Steps:   [][]string{sh("sleep 5 & sleep 5; wait")},
		Timeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	// The background sleep holds the output pipes; killing the group frees
	// them without waiting for WaitDelay.
	assert.Less(t, res.Duration, 1500*time.Millisecond)
}

func TestProcessSandbox_TimeoutIsSharedAcrossSteps(t *testing.T) {
	requireShell(t)
	sb := NewProcessSandbox(DefaultPolicy())

	res, err := sb.Exec(context.Background(), ExecOpts{
		Steps:   [][]string{sh("sleep 0.3"), sh("sleep 0.3")},
		Timeout: 450 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Equal(t, 1, res.Step)
}

func TestProcessSandbox_Truncation(t *testing.T) {
	requireShell(t)
	policy := DefaultPolicy()
	policy.MaxOutput = 10
	sb := NewProcessSandbox(policy)

	res, err := sb.Exec(context.Background(), ExecOpts{Steps: [][]string{sh("printf 0123456789abcdef")}})
	require.NoError(t, err)
	assert.Equal(t, "0123456789", res.Stdout)
	assert.True(t, res.Truncated)
}

func TestProcessSandbox_StdinAndWorkdir(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greeting.txt"), []byte("hello "), 0o644))
	sb := NewProcessSandbox(DefaultPolicy())

	res, err := sb.Exec(context.Background(), ExecOpts{
		Steps:   [][]string{sh("cat greeting.txt; cat")},
		Workdir: dir,
		Stdin:   "world",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world", res.Stdout)
}

func TestProcessSandbox_MissingBinary(t *testing.T) {
	sb := NewProcessSandbox(DefaultPolicy())

	_, err := sb.Exec(context.Background(), ExecOpts{Steps: [][]string{{"codecollab-no-such-binary"}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, exec.ErrNotFound), "got %v", err)
}

func TestProcessSandbox_CallerCancelled(t *testing.T) {
	requireShell(t)
	sb := NewProcessSandbox(DefaultPolicy())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sb.Exec(ctx, ExecOpts{Steps: [][]string{sh("echo hi")}})
	assert.Error(t, err)
}

func TestProcessSandbox_RejectsEmptySteps(t *testing.T) {
	sb := NewProcessSandbox(DefaultPolicy())

	_, err := sb.Exec(context.Background(), ExecOpts{})
	assert.Error(t, err)

	_, err = sb.Exec(context.Background(), ExecOpts{Steps: [][]string{{}}})
	assert.Error(t, err)
}

func TestPolicy_Timeout(t *testing.T) {
	p := Policy{MaxTimeout: 10 * time.Second}
	assert.Equal(t, 10*time.Second, p.Timeout(0))
	assert.Equal(t, 10*time.Second, p.Timeout(time.Minute))
	assert.Equal(t, 2*time.Second, p.Timeout(2*time.Second))
}

func TestPolicy_IsImageAllowed(t *testing.T) {
	p := DefaultPolicy()
	assert.True(t, p.IsImageAllowed("python:3.12-slim"))
	assert.False(t, p.IsImageAllowed("alpine:latest"))
}

func TestDockerSandbox_RejectsImage(t *testing.T) {
	d := NewDockerSandbox(DefaultPolicy())
	_, err := d.Exec(context.Background(), ExecOpts{
		Steps:   [][]string{{"sh"}},
		Workdir: t.TempDir(),
		Image:   "alpine:latest",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in allowlist")
}

func TestDockerSandbox_MissingCLI(t *testing.T) {
	d := NewDockerSandbox(DefaultPolicy())
	d.Binary = "codecollab-no-such-docker"
	_, err := d.Exec(context.Background(), ExecOpts{
		Steps:   [][]string{{"python3", "main.py"}},
		Workdir: t.TempDir(),
		Image:   "python:3.12-slim",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.False(t, errors.Is(err, exec.ErrNotFound), "would read as a missing language runtime")
}

func TestDockerSandbox_RunArgs(t *testing.T) {
	d := NewDockerSandbox(DefaultPolicy())
	args := d.runArgs("box", ExecOpts{Workdir: "/scratch", Image: "gcc:14"}, []string{"gcc", "/scratch/a.c"})

	assert.Equal(t, []string{
		"run", "--rm", "-i",
		"--name", "box",
		"--pids-limit", "256",
		"-v", "/scratch:/scratch",
		"-w", "/scratch",
		"--memory", "256m",
		"--network=none",
		"gcc:14",
		"gcc", "/scratch/a.c",
	}, args)

	d.Policy.Network = true
	assert.NotContains(t, d.runArgs("box", ExecOpts{Workdir: "/s", Image: "gcc:14"}, []string{"x"}), "--network=none")
}

func TestLimitWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &limitWriter{buf: &buf, limit: 5}

	n, err := w.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.False(t, w.dropped)

	n, err = w.Write([]byte("defg"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.True(t, w.dropped)

	n, _ = w.Write([]byte("hij"))
	assert.Equal(t, 3, n)
	assert.Equal(t, "abcde", buf.String())
}
