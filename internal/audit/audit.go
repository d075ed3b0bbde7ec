// Package audit records everything a run did: an append-only line log written
// as the run progresses, and a JSON manifest written once at the end. Both
// stay local; a failed run is diagnosable without re-running it.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/moor/internal/remote"
)

// StageRecord is one stage outcome as persisted in the manifest.
type StageRecord struct {
	Stage    string `json:"stage"`
	OK       bool   `json:"ok"`
	Class    string `json:"class"`
	Detail   string `json:"detail,omitempty"`
	Duration string `json:"duration"`
}

// RunManifest is the JSON summary written at process exit.
type RunManifest struct {
	RunID      string        `json:"run_id"`
	Mode       string        `json:"mode"`
	Spec       string        `json:"spec"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Status     string        `json:"status"`
	Stages     []StageRecord `json:"stages"`
}

// Trail is the per-run audit destination.
type Trail struct {
	runID string
	dir   string

	mu   sync.Mutex
	file *os.File
}

// New creates the run directory under baseDir and opens the line log.
func New(baseDir string) (*Trail, error) {
	runID := uuid.New().String()
	dir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}

	file, err := os.OpenFile(filepath.Join(dir, "deploy.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	return &Trail{runID: runID, dir: dir, file: file}, nil
}

// RunID returns the unique identifier of this run.
func (t *Trail) RunID() string {
	return t.runID
}

// Dir returns the run directory holding the log and manifest.
func (t *Trail) Dir() string {
	return t.dir
}

// LogPath returns the line log location for operator-facing output.
func (t *Trail) LogPath() string {
	return filepath.Join(t.dir, "deploy.log")
}

// Printf appends one timestamped line to the log.
func (t *Trail) Printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return
	}
	fmt.Fprintf(t.file, "%s %s\n",
		time.Now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))
}

// Command records a remote command's exit status and trimmed output,
// regardless of whether the stage tolerated the outcome.
func (t *Trail) Command(res remote.Result) {
	out := res.Output()
	if out == "" {
		out = "(no output)"
	}
	t.Printf("cmd: %s | exit=%d %s | %s", res.Command, res.ExitCode, res.Duration.Round(time.Millisecond), out)
}

// Stage records one stage outcome in the line log.
func (t *Trail) Stage(rec StageRecord) {
	status := "ok"
	if !rec.OK {
		status = "failed"
	}
	t.Printf("stage %s: %s (%s) %s", rec.Stage, status, rec.Class, rec.Detail)
}

// WriteManifest persists the JSON run summary next to the line log.
func (t *Trail) WriteManifest(m RunManifest) error {
	m.RunID = t.runID
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(t.dir, "manifest.json"), data, 0o600); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Close flushes and closes the line log.
func (t *Trail) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}
