// Package command runs the external tools the sync pipeline drives: the
// translation platform client, the catalog generator and git.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/minios-linux/catsync/settings"
)

// ErrNotInstalled is returned when a program is not found in PATH.
var ErrNotInstalled = errors.New("program not installed")

// ExitError describes a program that ran and failed.
type ExitError struct {
	Args   []string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", strings.Join(e.Args, " "), e.Code)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	return msg
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Cmd is one program invocation.
type Cmd struct {
	// Dir is the working directory; empty means the current one.
	Dir  string
	Name string
	Args []string
	// Env is appended to the inherited environment.
	Env []string
	// Secrets are masked wherever the command is shown.
	Secrets []string
}

// Argv returns the program name and arguments with secrets masked.
func (c Cmd) Argv() []string {
	argv := make([]string, 0, len(c.Args)+1)
	argv = append(argv, c.Name)
	for _, a := range c.Args {
		argv = append(argv, c.Redact(a))
	}
	return argv
}

// Redact masks every secret of c found in s.
func (c Cmd) Redact(s string) string {
	for _, secret := range c.Secrets {
		if secret != "" {
			s = strings.ReplaceAll(s, secret, settings.MaskKey(secret))
		}
	}
	return s
}

// String renders the command line with secrets masked.
func (c Cmd) String() string {
	return strings.Join(c.Argv(), " ")
}

// Runner executes commands and returns their standard output.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes cmd and captures stdout and stderr. A non-zero exit yields an
// *ExitError; a missing program yields an error wrapping ErrNotInstalled.
func (ExecRunner) Run(ctx context.Context, cmd Cmd) ([]byte, error) {
	path, err := exec.LookPath(cmd.Name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.Name, ErrNotInstalled)
	}

	c := exec.CommandContext(ctx, path, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(c.Environ(), cmd.Env...)
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	log.Debug().Str("dir", cmd.Dir).Str("cmd", cmd.String()).Msg("running")

	if err := c.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), &ExitError{
				Args:   cmd.Argv(),
				Code:   exitErr.ExitCode(),
				Stderr: cmd.Redact(stderr.String()),
			}
		}
		return stdout.Bytes(), fmt.Errorf("running %s: %w", cmd.Name, err)
	}
	return stdout.Bytes(), nil
}

// Recorder is a Runner that records invocations instead of running them.
// Outputs and Errors are keyed by the command line as String renders it.
type Recorder struct {
	Calls   []Cmd
	Outputs map[string]string
	Errors  map[string]error
}

// Run records cmd and returns the canned output or error for it.
func (r *Recorder) Run(_ context.Context, cmd Cmd) ([]byte, error) {
	r.Calls = append(r.Calls, cmd)
	line := cmd.String()
	if err, ok := r.Errors[line]; ok {
		return nil, err
	}
	return []byte(r.Outputs[line]), nil
}

// Lines returns the recorded command lines.
func (r *Recorder) Lines() []string {
	out := make([]string, 0, len(r.Calls))
	for _, c := range r.Calls {
		out = append(out, c.String())
	}
	return out
}
