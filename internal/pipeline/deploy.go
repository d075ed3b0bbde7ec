package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/moor/internal/errors"
	"github.com/felixgeelhaar/moor/internal/identity"
	"github.com/felixgeelhaar/moor/internal/provision"
	"github.com/felixgeelhaar/moor/internal/proxy"
	"github.com/felixgeelhaar/moor/internal/remote"
	"github.com/felixgeelhaar/moor/internal/validate"
	"github.com/felixgeelhaar/moor/internal/workspace"
)

// collectSpec validates the operator input and records its masked summary.
// Nothing before this stage may touch the spec's credential.
func (r *run) collectSpec(ctx context.Context) (string, error) {
	r.spec.ApplyDefaults()
	if err := r.spec.Validate(); err != nil {
		return "", err
	}
	if r.p.Trail != nil {
		r.p.Trail.Printf("spec: %s", r.spec.Summary())
	}
	return "spec validated", nil
}

// syncWorkspace materializes the repository and confirms it is deployable,
// before any remote session exists to waste.
func (r *run) syncWorkspace(ctx context.Context) (string, error) {
	name := identity.AppName(r.spec.RepoURL)
	if name == "" {
		return "", errors.NewEmptyNameError(r.spec.RepoURL)
	}

	artifact, err := r.p.Workspaces.Sync(ctx, r.spec, name)
	if err != nil {
		return "", err
	}
	r.artifact = artifact

	detail := fmt.Sprintf("revision %.12s, %s descriptor", artifact.Revision, artifact.Descriptor)
	if services := artifact.Services(); len(services) > 0 {
		detail += " (services: " + strings.Join(services, ", ") + ")"
	}
	return detail, nil
}

// precheckTooling verifies local capabilities before opening any session.
func (r *run) precheckTooling(ctx context.Context) (string, error) {
	if err := remote.CheckKey(r.spec.KeyPath); err != nil {
		return "", err
	}
	return "SSH key usable", nil
}

// deriveIdentity computes the names every later stage keys its resources by.
func (r *run) deriveIdentity(ctx context.Context) (string, error) {
	id, err := identity.Derive(r.spec, r.now())
	if err != nil {
		return "", err
	}
	r.id = id
	return fmt.Sprintf("app %s, release %s", id.AppName, id.ReleaseDir), nil
}

// connectivityCheck opens the SSH session and proves it can run a command.
// In dry-run mode this is the last live remote contact: every later stage
// talks to a recorder instead.
func (r *run) connectivityCheck(ctx context.Context) (string, error) {
	live, err := r.p.Dial(ctx)
	if err != nil {
		return "", err
	}
	r.live = live
	r.exec = &auditedExecutor{inner: live, trail: r.p.Trail}

	res, err := r.exec.Run(ctx, remote.Cmd{Line: "echo ok"})
	if err != nil {
		return "", err
	}
	if !res.Ok() {
		return "", errors.Newf(errors.ErrCodeConnSession,
			"remote shell check failed: %s", res.Output())
	}

	if r.dryRun {
		r.recorder = remote.NewRecorder()
		r.exec = &auditedExecutor{inner: r.recorder, trail: r.p.Trail}
		return fmt.Sprintf("connected to %s (dry-run: no further live commands)", r.spec.Host), nil
	}
	return "connected to " + r.spec.Host, nil
}

// provisionHost installs docker, compose when needed, and nginx, through the
// package-manager capability detected on the host.
func (r *run) provisionHost(ctx context.Context) (string, error) {
	prov, err := provision.Detect(ctx, r.exec)
	if err != nil {
		return "", err
	}

	if _, err := prov.EnsureDocker(ctx); err != nil {
		return "", err
	}
	if r.artifact != nil && r.artifact.Descriptor == workspace.KindCompose {
		if _, err := prov.EnsureCompose(ctx); err != nil {
			return "", err
		}
	}
	if _, err := prov.EnsureNginx(ctx); err != nil {
		return "", err
	}

	return fmt.Sprintf("host provisioned via %s", prov.Name()), nil
}

// transferArtifact ships the working copy into this run's release directory.
// The timestamped path guarantees no collision with earlier releases.
func (r *run) transferArtifact(ctx context.Context) (string, error) {
	if _, err := remote.Upload(ctx, r.exec, r.artifact.Dir, r.id.ReleasePath()); err != nil {
		return "", err
	}
	return "artifact uploaded to " + r.id.ReleasePath(), nil
}

// buildAndRun replaces whatever is running under the application's name and
// starts the new release, loopback-bound so nginx stays the only public door.
func (r *run) buildAndRun(ctx context.Context) (string, error) {
	app := r.id.ContainerName()
	image := r.id.ImageTag()
	port := r.spec.ContainerPort
	release := r.id.ReleasePath()

	// Idempotent replace: clear any prior container or stack by name. A
	// missing resource exits non-zero and that is fine.
	if _, err := r.exec.Run(ctx, remote.Cmd{
		Line:     fmt.Sprintf("sudo docker rm -f %s", app),
		Mutating: true,
	}); err != nil {
		return "", err
	}
	if r.artifact.Descriptor == workspace.KindCompose {
		if _, err := r.exec.Run(ctx, remote.Cmd{
			Line:     fmt.Sprintf("sudo docker compose -p %s down --remove-orphans", app),
			Mutating: true,
		}); err != nil {
			return "", err
		}
	}

	// Best-effort: free the port if something unmanaged holds it. If this
	// fails, the bind failure below is the real error and will say so.
	if _, err := r.exec.Run(ctx, remote.Cmd{
		Line:     fmt.Sprintf("sudo fuser -k %d/tcp", port),
		Mutating: true,
	}); err != nil {
		return "", err
	}

	if r.artifact.Descriptor == workspace.KindCompose {
		res, err := r.exec.Run(ctx, remote.Cmd{
			Line:     fmt.Sprintf("cd %s && sudo docker compose -p %s up -d --build", release, app),
			Mutating: true,
		})
		if err != nil {
			return "", err
		}
		if !res.Ok() {
			return "", errors.Newf(errors.ErrCodeDeployCompose,
				"compose up failed: %s", res.Output())
		}
		return fmt.Sprintf("compose stack %s running", app), nil
	}

	res, err := r.exec.Run(ctx, remote.Cmd{
		Line:     fmt.Sprintf("cd %s && sudo docker build -t %s .", release, image),
		Mutating: true,
	})
	if err != nil {
		return "", err
	}
	if !res.Ok() {
		return "", errors.Newf(errors.ErrCodeDeployBuild,
			"image build failed: %s", res.Output())
	}

	res, err = r.exec.Run(ctx, remote.Cmd{
		Line: fmt.Sprintf(
			"sudo docker run -d --name %s --restart unless-stopped -p 127.0.0.1:%d:%d %s",
			app, port, port, image),
		Mutating: true,
	})
	if err != nil {
		return "", err
	}
	if !res.Ok() {
		return "", errors.Newf(errors.ErrCodeDeployRun,
			"container start failed: %s", res.Output())
	}
	return fmt.Sprintf("container %s running on 127.0.0.1:%d", app, port), nil
}

// configureProxy renders the nginx server block and activates it behind the
// syntax check.
func (r *run) configureProxy(ctx context.Context) (string, error) {
	cfg, err := proxy.Render(r.id, r.spec.ContainerPort)
	if err != nil {
		return "", err
	}
	if _, err := proxy.Activate(ctx, r.exec, cfg); err != nil {
		return "", err
	}
	return fmt.Sprintf("nginx proxying :%d -> 127.0.0.1:%d", cfg.ListenPort, cfg.UpstreamPort), nil
}

// validateDeployment probes the service through the public proxy address and,
// diagnostically, the loopback port on the host itself.
func (r *run) validateDeployment(ctx context.Context) (string, error) {
	proxyURL := fmt.Sprintf("http://%s/", r.spec.Host)
	if r.dryRun {
		return "skipped (dry-run): would probe " + proxyURL, nil
	}

	report, err := r.prober().ProbeWithRetry(ctx, proxyURL, r.p.ProbeAttempts)
	if err != nil {
		return "", err
	}

	// The loopback probe runs on the host because the container publishes
	// on 127.0.0.1 only. Purely diagnostic; its failure changes nothing.
	diag, diagErr := r.exec.Run(ctx, remote.Cmd{
		Line: fmt.Sprintf("curl -s -o /dev/null -w '%%{http_code}' http://127.0.0.1:%d/", r.spec.ContainerPort),
	})
	diagNote := ""
	if diagErr == nil && diag.Ok() {
		diagNote = fmt.Sprintf("; loopback answered %s", strings.TrimSpace(diag.Stdout))
	}

	if report.Verdict == validate.VerdictWarn {
		return "warning: " + report.Detail + diagNote, nil
	}
	return report.Detail + diagNote, nil
}
