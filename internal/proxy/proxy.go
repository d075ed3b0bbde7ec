// Package proxy generates and activates the nginx server block that fronts
// the deployed container. The config is rendered locally from a typed
// template and never reloaded into nginx without passing a syntax check.
package proxy

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/felixgeelhaar/moor/internal/errors"
	"github.com/felixgeelhaar/moor/internal/identity"
	"github.com/felixgeelhaar/moor/internal/remote"
)

// ListenPort is the public entry point. The container itself binds loopback
// only; nginx is the one thing the internet talks to.
const ListenPort = 80

const serverBlock = `server {
    listen {{ .ListenPort }};
    server_name {{ .AppName }};

    location / {
        proxy_pass http://127.0.0.1:{{ .UpstreamPort }};
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
    }
}
`

var serverTmpl = template.Must(template.New("server").Parse(serverBlock))

// Config is the rendered proxy artifact for one application.
type Config struct {
	AppName      string
	ListenPort   int
	UpstreamPort int
	Body         string
}

// Render substitutes the application name and upstream port into the fixed
// server-block template.
func Render(id identity.Identity, containerPort int) (Config, error) {
	cfg := Config{
		AppName:      id.AppName,
		ListenPort:   ListenPort,
		UpstreamPort: containerPort,
	}

	var buf bytes.Buffer
	if err := serverTmpl.Execute(&buf, cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeProxyRender, "render server block", err)
	}
	cfg.Body = buf.String()
	return cfg, nil
}

// sitePaths returns the config path and optional enable-symlink command for
// the host's nginx layout. Debian-family installs use sites-available with a
// symlink; everything else gets conf.d.
func sitePaths(ctx context.Context, x remote.Executor, appName string) (configPath, enableCmd string, err error) {
	res, err := x.Run(ctx, remote.Cmd{Line: "test -d /etc/nginx/sites-available"})
	if err != nil {
		return "", "", err
	}
	if res.Ok() {
		configPath = fmt.Sprintf("/etc/nginx/sites-available/%s.conf", appName)
		enableCmd = fmt.Sprintf("sudo ln -sf %s /etc/nginx/sites-enabled/%s.conf", configPath, appName)
		return configPath, enableCmd, nil
	}
	return fmt.Sprintf("/etc/nginx/conf.d/%s.conf", appName), "", nil
}

// Activate writes the config under the application's fixed file stem (so a
// re-deploy overwrites rather than accumulates), runs nginx's own syntax
// check, and only then reloads. On a failed check the file is written but the
// running proxy keeps its previous configuration; no reload is issued.
func Activate(ctx context.Context, x remote.Executor, cfg Config) (remote.Result, error) {
	configPath, enableCmd, err := sitePaths(ctx, x, cfg.AppName)
	if err != nil {
		return remote.Result{}, err
	}

	res, err := x.Run(ctx, remote.Cmd{
		Line:     fmt.Sprintf("sudo tee %s >/dev/null", configPath),
		Stdin:    []byte(cfg.Body),
		Mutating: true,
	})
	if err != nil {
		return res, err
	}
	if !res.Ok() {
		return res, errors.Newf(errors.ErrCodeProxyReload,
			"cannot write %s: %s", configPath, res.Output())
	}

	if enableCmd != "" {
		res, err = x.Run(ctx, remote.Cmd{Line: enableCmd, Mutating: true})
		if err != nil {
			return res, err
		}
		if !res.Ok() {
			return res, errors.Newf(errors.ErrCodeProxyReload,
				"cannot enable %s: %s", configPath, res.Output())
		}
	}

	res, err = x.Run(ctx, remote.Cmd{Line: "sudo nginx -t"})
	if err != nil {
		return res, err
	}
	if !res.Ok() {
		return res, errors.Newf(errors.ErrCodeProxySyntax,
			"nginx rejected the generated config: %s", res.Output()).
			WithSuggestion("The running proxy is untouched; inspect " + configPath)
	}

	res, err = x.Run(ctx, remote.Cmd{Line: "sudo systemctl reload nginx", Mutating: true})
	if err != nil {
		return res, err
	}
	if !res.Ok() {
		return res, errors.Newf(errors.ErrCodeProxyReload,
			"nginx reload failed: %s", res.Output())
	}
	return res, nil
}

// Remove deletes the application's config from both possible layouts and
// reloads nginx. Callers treat failures as tolerated; absence is not an error.
func Remove(ctx context.Context, x remote.Executor, appName string) (remote.Result, error) {
	line := fmt.Sprintf(
		"sudo rm -f /etc/nginx/sites-enabled/%[1]s.conf /etc/nginx/sites-available/%[1]s.conf /etc/nginx/conf.d/%[1]s.conf && sudo nginx -t && sudo systemctl reload nginx",
		appName)
	return x.Run(ctx, remote.Cmd{Line: line, Mutating: true})
}
