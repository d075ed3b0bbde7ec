package remote

import (
	"context"
	"testing"
)

func TestRecorderDefaultsToSuccess(t *testing.T) {
	r := NewRecorder()

	res, err := r.Run(context.Background(), Cmd{Line: "echo ok"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Ok() {
		t.Errorf("default result should succeed, got exit %d", res.ExitCode)
	}
	if res.Command != "echo ok" {
		t.Errorf("Command = %q, want %q", res.Command, "echo ok")
	}
}

func TestRecorderScriptedResponses(t *testing.T) {
	r := NewRecorder().
		Respond("command -v apt-get", Result{ExitCode: 1}).
		Respond("command -v yum", Result{Stdout: "/usr/bin/yum"})

	res, _ := r.Run(context.Background(), Cmd{Line: "command -v apt-get"})
	if res.Ok() {
		t.Error("apt-get probe should fail per script")
	}

	res, _ = r.Run(context.Background(), Cmd{Line: "command -v yum"})
	if !res.Ok() || res.Stdout != "/usr/bin/yum" {
		t.Errorf("yum probe = %+v, want scripted success", res)
	}
}

func TestRecorderLaterScriptsWin(t *testing.T) {
	r := NewRecorder().
		Respond("nginx -t", Result{ExitCode: 1, Stderr: "syntax error"}).
		Respond("nginx -t", Result{})

	res, _ := r.Run(context.Background(), Cmd{Line: "sudo nginx -t"})
	if !res.Ok() {
		t.Errorf("later script should override, got exit %d", res.ExitCode)
	}
}

func TestRecorderTracksMutatingCommands(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()

	r.Run(ctx, Cmd{Line: "command -v docker"})
	r.Run(ctx, Cmd{Line: "sudo docker rm -f app", Mutating: true})
	r.Run(ctx, Cmd{Line: "echo ok"})
	r.Run(ctx, Cmd{Line: "mkdir -p /srv/app", Mutating: true})

	if got := len(r.Commands()); got != 4 {
		t.Fatalf("Commands() length = %d, want 4", got)
	}
	mut := r.MutatingCommands()
	if len(mut) != 2 {
		t.Fatalf("MutatingCommands() length = %d, want 2", len(mut))
	}
	if mut[0].Line != "sudo docker rm -f app" || mut[1].Line != "mkdir -p /srv/app" {
		t.Errorf("mutating commands out of order: %+v", mut)
	}
}
