package identity

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/moor/internal/errors"
	"github.com/felixgeelhaar/moor/internal/spec"
)

func TestAppName(t *testing.T) {
	tests := []struct {
		name    string
		repoURL string
		want    string
	}{
		{"https with .git", "https://github.com/acme/Flask-App.git", "flask-app"},
		{"https without .git", "https://github.com/acme/my_service", "my-service"},
		{"trailing slash", "https://github.com/acme/app/", "app"},
		{"consecutive separators", "https://github.com/acme/my--weird__repo", "my-weird-repo"},
		{"leading separator runs", "https://github.com/acme/_private", "private"},
		{"uppercase collapsed", "git@github.com:acme/HelloWorld.git", "helloworld"},
		{"digits kept", "https://github.com/acme/app2024", "app2024"},
		{"nothing usable", "https://github.com/acme/___", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AppName(tt.repoURL); got != tt.want {
				t.Errorf("AppName(%q) = %q, want %q", tt.repoURL, got, tt.want)
			}
		})
	}
}

func TestAppNameAlwaysValid(t *testing.T) {
	inputs := []string{
		"https://github.com/acme/Flask-App.git",
		"https://github.com/acme/my_service",
		"https://gitlab.com/a/b/-deep.nested-",
		"git@github.com:acme/X.git",
		"https://github.com/acme/app..git.git",
	}
	for _, in := range inputs {
		name := AppName(in)
		if name == "" {
			continue
		}
		if !Valid(name) {
			t.Errorf("AppName(%q) = %q does not match the shared naming pattern", in, name)
		}
	}
}

func TestDeriveIsPure(t *testing.T) {
	s := &spec.DeploymentSpec{
		RepoURL:    "https://github.com/acme/flask-app.git",
		RemoteBase: "~/deployments",
	}
	now := time.Date(2024, 6, 1, 12, 30, 45, 0, time.UTC)

	first, err := Derive(s, now)
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	second, err := Derive(s, now)
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}

	if first != second {
		t.Errorf("Derive() is not deterministic: %+v vs %+v", first, second)
	}
	if first.AppName != "flask-app" {
		t.Errorf("AppName = %q, want flask-app", first.AppName)
	}
	if first.ReleaseDir != "flask-app_20240601123045" {
		t.Errorf("ReleaseDir = %q, want flask-app_20240601123045", first.ReleaseDir)
	}
	if first.ReleasePath() != "~/deployments/flask-app_20240601123045" {
		t.Errorf("ReleasePath() = %q", first.ReleasePath())
	}
}

func TestDeriveDistinctRunsGetDistinctReleaseDirs(t *testing.T) {
	s := &spec.DeploymentSpec{
		RepoURL:    "https://github.com/acme/flask-app.git",
		RemoteBase: "~/deployments",
	}

	a, _ := Derive(s, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	b, _ := Derive(s, time.Date(2024, 6, 1, 12, 0, 1, 0, time.UTC))

	if a.ReleaseDir == b.ReleaseDir {
		t.Error("two runs produced the same release directory")
	}
	if a.AppName != b.AppName {
		t.Error("long-lived resource name must not vary between runs")
	}
}

func TestDeriveEmptyNameIsInputError(t *testing.T) {
	s := &spec.DeploymentSpec{RepoURL: "https://github.com/acme/___"}
	_, err := Derive(s, time.Now())
	if err == nil {
		t.Fatal("Derive() expected an error for an unusable URL")
	}
	if errors.CodeOf(err).Category() != "INPUT" {
		t.Errorf("error category = %q, want INPUT", errors.CodeOf(err).Category())
	}
}
