package proxy

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/moor/internal/errors"
	"github.com/felixgeelhaar/moor/internal/identity"
	"github.com/felixgeelhaar/moor/internal/remote"
	"github.com/felixgeelhaar/moor/internal/spec"
)

func testIdentity(t *testing.T) identity.Identity {
	t.Helper()
	s := &spec.DeploymentSpec{RepoURL: "https://github.com/acme/flask-demo.git"}
	id, err := identity.Derive(s, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestRender(t *testing.T) {
	cfg, err := Render(testIdentity(t), 5000)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if cfg.AppName != "flask-demo" {
		t.Errorf("AppName = %s", cfg.AppName)
	}
	if cfg.ListenPort != 80 || cfg.UpstreamPort != 5000 {
		t.Errorf("ports = (%d, %d), want (80, 5000)", cfg.ListenPort, cfg.UpstreamPort)
	}

	for _, want := range []string{
		"listen 80;",
		"server_name flask-demo;",
		"proxy_pass http://127.0.0.1:5000;",
		"proxy_set_header Host $host;",
		"proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;",
	} {
		if !strings.Contains(cfg.Body, want) {
			t.Errorf("rendered config missing %q:\n%s", want, cfg.Body)
		}
	}
}

func TestActivateDebianLayout(t *testing.T) {
	rec := remote.NewRecorder() // test -d sites-available succeeds by default
	cfg, err := Render(testIdentity(t), 5000)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Activate(context.Background(), rec, cfg); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	var lines []string
	for _, c := range rec.Commands() {
		lines = append(lines, c.Line)
	}

	wantOrder := []string{
		"test -d /etc/nginx/sites-available",
		"sudo tee /etc/nginx/sites-available/flask-demo.conf",
		"sudo ln -sf /etc/nginx/sites-available/flask-demo.conf /etc/nginx/sites-enabled/flask-demo.conf",
		"sudo nginx -t",
		"sudo systemctl reload nginx",
	}
	if len(lines) != len(wantOrder) {
		t.Fatalf("commands = %v, want %d in order", lines, len(wantOrder))
	}
	for i, want := range wantOrder {
		if !strings.Contains(lines[i], want) {
			t.Errorf("command[%d] = %q, want it to contain %q", i, lines[i], want)
		}
	}

	// The server block travels on stdin, so re-deploys overwrite in place.
	if string(rec.Commands()[1].Stdin) != cfg.Body {
		t.Error("tee stdin does not carry the rendered config")
	}
}

func TestActivateConfDLayout(t *testing.T) {
	rec := remote.NewRecorder().
		RespondError("test -d /etc/nginx/sites-available", 1, "")
	cfg, err := Render(testIdentity(t), 8080)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Activate(context.Background(), rec, cfg); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	for _, c := range rec.Commands() {
		if strings.Contains(c.Line, "ln -sf") {
			t.Errorf("conf.d layout must not symlink: %s", c.Line)
		}
	}
	var sawConfD bool
	for _, c := range rec.Commands() {
		if strings.Contains(c.Line, "tee /etc/nginx/conf.d/flask-demo.conf") {
			sawConfD = true
		}
	}
	if !sawConfD {
		t.Errorf("config not written under conf.d: %+v", rec.Commands())
	}
}

func TestActivateSyntaxFailureSkipsReload(t *testing.T) {
	rec := remote.NewRecorder().
		RespondError("nginx -t", 1, `nginx: [emerg] unexpected "}" in /etc/nginx/sites-enabled/flask-demo.conf:9`)
	cfg, err := Render(testIdentity(t), 5000)
	if err != nil {
		t.Fatal(err)
	}

	_, err = Activate(context.Background(), rec, cfg)
	if err == nil {
		t.Fatal("expected error when nginx rejects the config")
	}
	if errors.CodeOf(err) != errors.ErrCodeProxySyntax {
		t.Errorf("error code = %s, want %s", errors.CodeOf(err), errors.ErrCodeProxySyntax)
	}

	for _, c := range rec.Commands() {
		if strings.Contains(c.Line, "reload") {
			t.Errorf("reload issued after failed syntax check: %s", c.Line)
		}
	}
}

func TestRemoveCoversBothLayouts(t *testing.T) {
	rec := remote.NewRecorder()

	if _, err := Remove(context.Background(), rec, "flask-demo"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	cmds := rec.Commands()
	if len(cmds) != 1 {
		t.Fatalf("commands = %d, want 1", len(cmds))
	}
	line := cmds[0].Line
	for _, want := range []string{
		"/etc/nginx/sites-enabled/flask-demo.conf",
		"/etc/nginx/sites-available/flask-demo.conf",
		"/etc/nginx/conf.d/flask-demo.conf",
		"systemctl reload nginx",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("remove command missing %q: %s", want, line)
		}
	}
	if !cmds[0].Mutating {
		t.Error("remove command must be marked mutating")
	}
}
