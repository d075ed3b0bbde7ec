package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/moor/internal/remote"
)

func TestNewCreatesRunDirectory(t *testing.T) {
	base := t.TempDir()
	trail, err := New(base)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer trail.Close()

	if trail.RunID() == "" {
		t.Error("RunID() is empty")
	}
	if filepath.Dir(trail.Dir()) != base {
		t.Errorf("Dir() = %s, not under %s", trail.Dir(), base)
	}
	if _, err := os.Stat(trail.LogPath()); err != nil {
		t.Errorf("log file missing: %v", err)
	}
}

func TestDistinctRunsGetDistinctDirs(t *testing.T) {
	base := t.TempDir()
	a, err := New(base)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := New(base)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if a.Dir() == b.Dir() {
		t.Error("two runs share an audit directory")
	}
}

func TestPrintfAndCommandAppend(t *testing.T) {
	trail, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	trail.Printf("spec: repo=%s branch=%s", "https://github.com/acme/app.git", "main")
	trail.Command(remote.Result{
		Command:  "sudo docker rm -f app",
		ExitCode: 1,
		Stderr:   "Error: No such container: app",
		Duration: 120 * time.Millisecond,
	})
	trail.Stage(StageRecord{Stage: "build-and-run", OK: true, Class: "fatal", Duration: "2s"})
	if err := trail.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(trail.LogPath())
	if err != nil {
		t.Fatal(err)
	}
	log := string(data)

	for _, want := range []string{
		"spec: repo=https://github.com/acme/app.git branch=main",
		"cmd: sudo docker rm -f app | exit=1",
		"No such container",
		"stage build-and-run: ok",
	} {
		if !strings.Contains(log, want) {
			t.Errorf("log missing %q:\n%s", want, log)
		}
	}

	// Every line carries a timestamp prefix.
	for _, line := range strings.Split(strings.TrimSpace(log), "\n") {
		if _, err := time.Parse(time.RFC3339, strings.SplitN(line, " ", 2)[0]); err != nil {
			t.Errorf("line has no RFC3339 prefix: %q", line)
		}
	}
}

func TestWriteManifest(t *testing.T) {
	trail, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer trail.Close()

	started := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	err = trail.WriteManifest(RunManifest{
		Mode:       "deploy",
		Spec:       "repo=https://github.com/acme/app.git host=203.0.113.7",
		StartedAt:  started,
		FinishedAt: started.Add(40 * time.Second),
		Status:     "succeeded",
		Stages: []StageRecord{
			{Stage: "collect-spec", OK: true, Class: "fatal", Duration: "1ms"},
			{Stage: "validate", OK: true, Class: "tolerated", Detail: "HTTP 200", Duration: "90ms"},
		},
	})
	if err != nil {
		t.Fatalf("WriteManifest() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(trail.Dir(), "manifest.json"))
	if err != nil {
		t.Fatal(err)
	}

	var m RunManifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("manifest is not valid JSON: %v", err)
	}
	if m.RunID != trail.RunID() {
		t.Errorf("RunID = %s, want %s", m.RunID, trail.RunID())
	}
	if m.Status != "succeeded" || m.Mode != "deploy" {
		t.Errorf("status/mode = %s/%s", m.Status, m.Mode)
	}
	if len(m.Stages) != 2 || m.Stages[1].Detail != "HTTP 200" {
		t.Errorf("stages not preserved: %+v", m.Stages)
	}
}

func TestWriteAfterCloseIsSilent(t *testing.T) {
	trail, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := trail.Close(); err != nil {
		t.Fatal(err)
	}
	trail.Printf("late line") // must not panic
	if err := trail.Close(); err != nil {
		t.Errorf("double Close() error = %v", err)
	}
}
