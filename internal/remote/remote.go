// Package remote is the only path through which the pipeline touches the
// network. Everything it needs from a host is one capability: run a command,
// optionally with bytes on stdin, and report how it went.
package remote

import (
	"context"
	"strings"
	"time"
)

// Cmd is a single remote command. Mutating marks commands that change host
// state; dry-run relies on this classification to prove it never executes one.
type Cmd struct {
	Line     string
	Stdin    []byte
	Mutating bool
}

// Result is the outcome of one remote command.
type Result struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Ok reports whether the command exited zero.
func (r Result) Ok() bool {
	return r.ExitCode == 0
}

// Output returns the combined trimmed output, stderr last.
func (r Result) Output() string {
	out := strings.TrimSpace(r.Stdout)
	errOut := strings.TrimSpace(r.Stderr)
	switch {
	case out == "":
		return errOut
	case errOut == "":
		return out
	default:
		return out + "\n" + errOut
	}
}

// Executor runs commands on the remote host. A transport failure (session
// cannot be established) is returned as an error. A command that ran and
// exited non-zero is a Result with a non-zero ExitCode, not an error; the
// caller decides whether that is fatal.
type Executor interface {
	Run(ctx context.Context, c Cmd) (Result, error)
	Close() error
}
