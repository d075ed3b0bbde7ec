package provision

import (
	"context"

	"github.com/felixgeelhaar/moor/internal/remote"
)

type yumProvisioner struct {
	x remote.Executor
}

func (p *yumProvisioner) Name() string { return "yum" }

func (p *yumProvisioner) EnsureDocker(ctx context.Context) (remote.Result, error) {
	res, err := ensure(ctx, p.x, "docker", "sudo yum install -y docker")
	if err != nil || !res.Ok() {
		return res, err
	}
	return enableService(ctx, p.x, "docker")
}

func (p *yumProvisioner) EnsureCompose(ctx context.Context) (remote.Result, error) {
	res, err := p.x.Run(ctx, remote.Cmd{Line: "docker compose version"})
	if err != nil {
		return res, err
	}
	if res.Ok() {
		return res, nil
	}
	return ensure(ctx, p.x, "docker-compose", "sudo yum install -y docker-compose-plugin")
}

func (p *yumProvisioner) EnsureNginx(ctx context.Context) (remote.Result, error) {
	res, err := ensure(ctx, p.x, "nginx", "sudo yum install -y nginx")
	if err != nil || !res.Ok() {
		return res, err
	}
	return enableService(ctx, p.x, "nginx")
}
