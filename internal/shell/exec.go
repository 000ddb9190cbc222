// Package shell runs external commands on the host.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Runner executes a command in dir and returns its captured output.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (stdout, stderr string, err error)
}

// ExecError is returned when a command cannot start or exits non-zero.
type ExecError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("exec %q: exit code %d", e.Command, e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	if e.Err != nil && e.ExitCode < 0 {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Err }

// Host runs commands with os/exec.
type Host struct {
	// Env, when set, replaces the inherited environment.
	Env []string
}

var _ Runner = Host{}

func (h Host) Run(ctx context.Context, dir, name string, args ...string) (string, string, error) {
	command := strings.Join(append([]string{name}, args...), " ")
	log := slog.With("component", "shell", "dir", dir)
	log.Debug("exec", "command", command)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if h.Env != nil {
		cmd.Env = h.Env
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		log.Debug("exec failed", "command", command, "exit_code", code, "stderr", strings.TrimSpace(stderr.String()))
		return stdout.String(), stderr.String(), &ExecError{
			Command:  command,
			ExitCode: code,
			Stderr:   stderr.String(),
			Err:      err,
		}
	}
	return stdout.String(), stderr.String(), nil
}
