package provision

import (
	"context"

	"github.com/felixgeelhaar/moor/internal/remote"
)

type aptProvisioner struct {
	x remote.Executor
}

func (p *aptProvisioner) Name() string { return "apt" }

func (p *aptProvisioner) EnsureDocker(ctx context.Context) (remote.Result, error) {
	res, err := ensure(ctx, p.x, "docker",
		"sudo apt-get update -y && sudo apt-get install -y docker.io")
	if err != nil || !res.Ok() {
		return res, err
	}
	return enableService(ctx, p.x, "docker")
}

func (p *aptProvisioner) EnsureCompose(ctx context.Context) (remote.Result, error) {
	// The compose plugin has no binary of its own; probe through docker.
	res, err := p.x.Run(ctx, remote.Cmd{Line: "docker compose version"})
	if err != nil {
		return res, err
	}
	if res.Ok() {
		return res, nil
	}
	return ensure(ctx, p.x, "docker-compose",
		"sudo apt-get install -y docker-compose-plugin || sudo apt-get install -y docker-compose")
}

func (p *aptProvisioner) EnsureNginx(ctx context.Context) (remote.Result, error) {
	res, err := ensure(ctx, p.x, "nginx", "sudo apt-get install -y nginx")
	if err != nil || !res.Ok() {
		return res, err
	}
	return enableService(ctx, p.x, "nginx")
}
