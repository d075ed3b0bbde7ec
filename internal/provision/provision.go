// Package provision installs the tooling a deployment needs on the remote
// host. "Install Docker on this distribution" is a capability with one
// implementation per package manager, not a branch inside the pipeline.
package provision

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/moor/internal/errors"
	"github.com/felixgeelhaar/moor/internal/remote"
)

// Provisioner installs or verifies one tool per method. Every operation is
// idempotent: present tooling is left alone.
type Provisioner interface {
	Name() string
	EnsureDocker(ctx context.Context) (remote.Result, error)
	EnsureCompose(ctx context.Context) (remote.Result, error)
	EnsureNginx(ctx context.Context) (remote.Result, error)
}

// Detect probes the remote host's package manager and returns the matching
// provisioner.
func Detect(ctx context.Context, x remote.Executor) (Provisioner, error) {
	probe := func(tool string) (bool, error) {
		res, err := x.Run(ctx, remote.Cmd{Line: "command -v " + tool})
		if err != nil {
			return false, err
		}
		return res.Ok(), nil
	}

	if ok, err := probe("apt-get"); err != nil {
		return nil, err
	} else if ok {
		return &aptProvisioner{x: x}, nil
	}

	if ok, err := probe("yum"); err != nil {
		return nil, err
	} else if ok {
		return &yumProvisioner{x: x}, nil
	}

	return nil, errors.New(errors.ErrCodeProvisionNoPkgManager,
		"no supported package manager found on the remote host").
		WithSuggestion("Supported targets use apt-get (Debian/Ubuntu) or yum (RHEL/CentOS)")
}

// Verify checks that every required tool is present without installing
// anything. Cleanup mode uses it so teardown never mutates host packages.
func Verify(ctx context.Context, x remote.Executor) (remote.Result, error) {
	res, err := x.Run(ctx, remote.Cmd{Line: "command -v docker && command -v nginx"})
	if err != nil {
		return res, err
	}
	if !res.Ok() {
		return res, errors.New(errors.ErrCodeProvisionVerify,
			"docker or nginx is missing on the remote host").
			WithSuggestion("Run a full deploy first; cleanup only verifies tooling")
	}
	return res, nil
}

// ensure is the shared install-if-absent helper behind every Ensure method.
func ensure(ctx context.Context, x remote.Executor, tool, installCmd string) (remote.Result, error) {
	res, err := x.Run(ctx, remote.Cmd{Line: "command -v " + tool})
	if err != nil {
		return res, err
	}
	if res.Ok() {
		res.Stdout = tool + " already installed\n"
		return res, nil
	}

	res, err = x.Run(ctx, remote.Cmd{Line: installCmd, Mutating: true})
	if err != nil {
		return res, err
	}
	if !res.Ok() {
		return res, errors.Newf(errors.ErrCodeProvisionInstall,
			"installing %s failed: %s", tool, res.Output())
	}
	return res, nil
}

func enableService(ctx context.Context, x remote.Executor, service string) (remote.Result, error) {
	res, err := x.Run(ctx, remote.Cmd{
		Line:     fmt.Sprintf("sudo systemctl enable --now %s", service),
		Mutating: true,
	})
	if err != nil {
		return res, err
	}
	if !res.Ok() {
		return res, errors.Newf(errors.ErrCodeProvisionInstall,
			"enabling %s failed: %s", service, res.Output())
	}
	return res, nil
}
