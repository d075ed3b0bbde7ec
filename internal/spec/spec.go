// Package spec defines the operator-supplied deployment parameters for one run.
package spec

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/felixgeelhaar/moor/internal/errors"
)

// Mode selects what the pipeline does with the spec.
type Mode string

const (
	// ModeDeploy runs the full provisioning and deployment sequence
	ModeDeploy Mode = "deploy"
	// ModeDryRun surfaces credential and host errors but performs no mutating remote call
	ModeDryRun Mode = "dry-run"
	// ModeCleanup tears down the resources a previous deploy created
	ModeCleanup Mode = "cleanup"
)

// DefaultContainerPort is the port the sample applications listen on.
const DefaultContainerPort = 5000

// DeploymentSpec holds the operator-provided parameters for a single run.
// It is immutable once validated; everything else the pipeline uses is
// derived from it.
type DeploymentSpec struct {
	RepoURL       string `yaml:"repo"`
	Branch        string `yaml:"branch"`
	Token         string `yaml:"token"`
	SSHUser       string `yaml:"ssh_user"`
	Host          string `yaml:"host"`
	KeyPath       string `yaml:"key"`
	ContainerPort int    `yaml:"port"`
	RemoteBase    string `yaml:"remote_base"`
	Mode          Mode   `yaml:"-"`
}

// ApplyDefaults fills in the fields the operator may omit.
func (s *DeploymentSpec) ApplyDefaults() {
	if s.Branch == "" {
		s.Branch = "main"
	}
	if s.ContainerPort == 0 {
		s.ContainerPort = DefaultContainerPort
	}
	if s.RemoteBase == "" {
		s.RemoteBase = "~/deployments"
	}
	if s.Mode == "" {
		s.Mode = ModeDeploy
	}
}

// Validate checks the spec before any local or remote work starts.
func (s *DeploymentSpec) Validate() error {
	if s.RepoURL == "" {
		return errors.NewMissingFieldError("repo")
	}
	if !strings.Contains(s.RepoURL, "@") || strings.Contains(s.RepoURL, "://") {
		if _, err := url.Parse(s.RepoURL); err != nil {
			return errors.Wrap(errors.ErrCodeInputBadRepoURL,
				fmt.Sprintf("cannot parse repository URL %q", s.RepoURL), err)
		}
	}
	if s.Host == "" {
		return errors.NewMissingFieldError("host")
	}
	if s.SSHUser == "" {
		return errors.NewMissingFieldError("user")
	}
	if s.KeyPath == "" {
		return errors.NewMissingFieldError("key")
	}
	if s.ContainerPort < 1 || s.ContainerPort > 65535 {
		return errors.Newf(errors.ErrCodeInputBadPort,
			"container port %d is outside 1-65535", s.ContainerPort)
	}
	switch s.Mode {
	case ModeDeploy, ModeDryRun, ModeCleanup:
	default:
		return errors.Newf(errors.ErrCodeInputMissingField, "unknown mode %q", s.Mode)
	}
	return nil
}

// MaskCredential renders a credential safe for logs: credentials of eight
// characters or fewer become a fixed mask, longer ones keep only their first
// and last four characters.
func MaskCredential(credential string) string {
	if credential == "" {
		return "(none)"
	}
	if len(credential) <= 8 {
		return "********"
	}
	return credential[:4] + "…" + credential[len(credential)-4:]
}

// Summary renders the spec for the audit log with the credential masked.
func (s *DeploymentSpec) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "repo=%s branch=%s host=%s user=%s key=%s port=%d mode=%s token=%s",
		s.RepoURL, s.Branch, s.Host, s.SSHUser, s.KeyPath, s.ContainerPort, s.Mode,
		MaskCredential(s.Token))
	return b.String()
}
