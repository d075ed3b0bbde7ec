package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/moor/internal/provision"
	"github.com/felixgeelhaar/moor/internal/proxy"
	"github.com/felixgeelhaar/moor/internal/remote"
)

// verifyTooling is cleanup mode's provisioning stage: confirm docker and
// nginx exist without installing anything.
func (r *run) verifyTooling(ctx context.Context) (string, error) {
	if _, err := provision.Verify(ctx, r.exec); err != nil {
		return "", err
	}
	return "docker and nginx present", nil
}

// ensureBaseDir is cleanup mode's transfer stage: make sure the deployment
// base exists so the teardown globs have somewhere to look.
func (r *run) ensureBaseDir(ctx context.Context) (string, error) {
	res, err := r.exec.Run(ctx, remote.Cmd{
		Line:     "mkdir -p " + r.id.RemoteBase,
		Mutating: true,
	})
	if err != nil {
		return "", err
	}
	if !res.Ok() {
		return "", fmt.Errorf("cannot ensure %s: %s", r.id.RemoteBase, res.Output())
	}
	return "base directory " + r.id.RemoteBase, nil
}

// teardownResources removes everything a deploy creates. Each sub-step is
// individually best-effort: a resource that was already absent reports
// "nothing to remove" and the next sub-step still runs. Only a broken
// session turns the stage fatal.
func (r *run) teardownResources(ctx context.Context) (string, error) {
	app := r.id.AppName

	steps := []struct {
		name string
		cmd  remote.Cmd
	}{
		{"remove container", remote.Cmd{
			Line:     fmt.Sprintf("sudo docker rm -f %s", r.id.ContainerName()),
			Mutating: true,
		}},
		{"remove compose stack", remote.Cmd{
			Line:     fmt.Sprintf("sudo docker compose -p %s down --remove-orphans", app),
			Mutating: true,
		}},
		{"remove image", remote.Cmd{
			Line:     fmt.Sprintf("sudo docker rmi -f %s", r.id.ImageTag()),
			Mutating: true,
		}},
		{"remove releases", remote.Cmd{
			Line:     fmt.Sprintf("rm -rf %s/%s_*", r.id.RemoteBase, app),
			Mutating: true,
		}},
	}

	var notes []string
	for _, step := range steps {
		res, err := r.exec.Run(ctx, step.cmd)
		if err != nil {
			// The session itself broke; that is the one fatal case.
			return "", err
		}
		if res.Ok() {
			notes = append(notes, step.name+": done")
		} else {
			notes = append(notes, step.name+": nothing to remove")
		}
	}

	res, err := proxy.Remove(ctx, r.exec, r.id.ProxyConfigName())
	if err != nil {
		return "", err
	}
	if res.Ok() {
		notes = append(notes, "remove proxy config: done")
	} else {
		notes = append(notes, "remove proxy config: nothing to remove")
	}

	return strings.Join(notes, "; "), nil
}
