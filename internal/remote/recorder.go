package remote

import (
	"context"
	"strings"
	"sync"
)

// Recorder is an Executor that never touches the network. The pipeline uses
// it to replace the live executor in dry-run mode, and tests use it to script
// remote responses and assert on the commands a stage issued.
type Recorder struct {
	mu        sync.Mutex
	commands  []Cmd
	responses []response
}

type response struct {
	match  string
	result Result
}

// NewRecorder returns a Recorder where every command succeeds with no output
// unless a response is scripted for it.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Respond scripts the result for every command whose line contains match.
// Later scripts win over earlier ones.
func (r *Recorder) Respond(match string, result Result) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, response{match: match, result: result})
	return r
}

// RespondError is shorthand for a non-zero exit with the given stderr.
func (r *Recorder) RespondError(match string, exitCode int, stderr string) *Recorder {
	return r.Respond(match, Result{ExitCode: exitCode, Stderr: stderr})
}

// Run records the command and returns its scripted (or default) result.
func (r *Recorder) Run(_ context.Context, c Cmd) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commands = append(r.commands, c)

	for i := len(r.responses) - 1; i >= 0; i-- {
		if strings.Contains(c.Line, r.responses[i].match) {
			res := r.responses[i].result
			res.Command = c.Line
			return res, nil
		}
	}
	return Result{Command: c.Line}, nil
}

// Close is a no-op.
func (r *Recorder) Close() error {
	return nil
}

// Commands returns every command seen so far, in order.
func (r *Recorder) Commands() []Cmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Cmd, len(r.commands))
	copy(out, r.commands)
	return out
}

// MutatingCommands returns only the commands marked as mutating.
func (r *Recorder) MutatingCommands() []Cmd {
	var out []Cmd
	for _, c := range r.Commands() {
		if c.Mutating {
			out = append(out, c)
		}
	}
	return out
}
