// Package procsup spawns, time-bounds, and kills analyzer subprocess trees,
// and propagates cancellation from the top-level interrupt into every
// in-flight child.
package procsup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// Spec describes one subprocess to spawn.
type Spec struct {
	Argv    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// Result is a completed subprocess's outcome.
type Result struct {
	ReturnCode int
	Stdout     []byte
	Stderr     []byte
	Killed     bool
}

// Handle is a running subprocess plus its own-process-group bookkeeping.
type Handle struct {
	cmd      *exec.Cmd
	stdout   *bytes.Buffer
	watchdog *Watchdog
	done     chan struct{}
}

// Spawn starts spec.Argv in its own process group with an explicit
// environment, so the whole descendant tree can later be signaled
// atomically. If spec.Timeout is positive a Watchdog is armed immediately.
func Spawn(ctx context.Context, logger watchdogLogger, spec Spec) (*Handle, error) {
	if len(spec.Argv) == 0 {
		return nil, fmt.Errorf("procsup: spawn: %w", errEmptyArgv)
	}

	cmd := exec.CommandContext(ctx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("procsup: start %s: %w", spec.Argv[0], err)
	}

	h := &Handle{cmd: cmd, stdout: &stdout, done: make(chan struct{})}

	if spec.Timeout > 0 {
		h.watchdog = NewWatchdog(WatchdogConfig{
			PID:     -cmd.Process.Pid, // negative PID addresses the process group.
			Logger:  logger,
			Timeout: spec.Timeout,
			Kill:    h.killGroup,
		})
	}

	return h, nil
}

// Wait blocks until the subprocess exits and returns its outcome. If a
// Watchdog killed the process, ReturnCode is -1 and Killed is true.
func (h *Handle) Wait() (Result, error) {
	err := h.cmd.Wait()
	close(h.done)

	if h.watchdog != nil {
		h.watchdog.Stop()
	}

	stdout := h.stdout.Bytes()

	stderrBuf, _ := h.cmd.Stderr.(*bytes.Buffer)

	var stderr []byte
	if stderrBuf != nil {
		stderr = stderrBuf.Bytes()
	}

	if h.watchdog != nil && h.watchdog.Killed() {
		return Result{ReturnCode: -1, Stdout: stdout, Stderr: stderr, Killed: true}, nil
	}

	if err == nil {
		return Result{ReturnCode: 0, Stdout: stdout, Stderr: stderr}, nil
	}

	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		return Result{ReturnCode: exitErr.ExitCode(), Stdout: stdout, Stderr: stderr}, nil
	}

	return Result{Stdout: stdout, Stderr: stderr}, fmt.Errorf("procsup: wait: %w", err)
}

// Kill terminates the process group: SIGTERM, a grace window, then
// SIGKILL. Exported so a caller holding a Handle outside the per-task
// watchdog — such as pkg/scheduler's top-level interrupt path — can kill
// the subprocess tree directly; exec.CommandContext's default Cancel hook
// only signals the direct child, not the process group Spawn creates.
func (h *Handle) Kill(grace time.Duration) error {
	return h.killGroup(grace)
}

func (h *Handle) killGroup(grace time.Duration) error {
	if h.cmd.Process == nil {
		return nil
	}

	pgid := -h.cmd.Process.Pid

	_ = syscall.Kill(pgid, syscall.SIGTERM)

	select {
	case <-h.done:
		return nil
	case <-time.After(grace):
	}

	return syscall.Kill(pgid, syscall.SIGKILL)
}

func asExitError(err error, target **exec.ExitError) bool {
	exitErr, ok := err.(*exec.ExitError) //nolint:errorlint // exec.Cmd.Wait always returns this concrete type on non-zero exit.
	if !ok {
		return false
	}

	*target = exitErr

	return true
}

var errEmptyArgv = errors.New("argv must not be empty")
