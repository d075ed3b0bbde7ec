// Package identity derives the deterministic names a deployment uses for its
// remote resources. Re-deploying the same repository reuses the same names,
// which is what makes re-runs replace resources instead of duplicating them.
package identity

import (
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/felixgeelhaar/moor/internal/errors"
	"github.com/felixgeelhaar/moor/internal/spec"
)

// Identity holds every name the pipeline derives from the spec. AppName is
// reused across runs (container name, image tag, nginx config stem);
// ReleaseDir is unique per run because it embeds the timestamp.
type Identity struct {
	AppName    string
	Timestamp  time.Time
	ReleaseDir string
	RemoteBase string
}

var namePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// Derive computes the deployment identity from the spec. It is pure: the same
// spec and clock always produce the same result, so any stage (or a later
// cleanup run) can re-derive it without shared state.
func Derive(s *spec.DeploymentSpec, now time.Time) (Identity, error) {
	name := AppName(s.RepoURL)
	if name == "" {
		return Identity{}, errors.NewEmptyNameError(s.RepoURL)
	}

	ts := now.UTC()
	return Identity{
		AppName:    name,
		Timestamp:  ts,
		ReleaseDir: name + "_" + ts.Format("20060102150405"),
		RemoteBase: s.RemoteBase,
	}, nil
}

// AppName normalizes the last path segment of a repository URL into a name
// that is simultaneously a valid container name, directory component, and
// nginx config stem: lowercase, runs of non-alphanumerics collapsed to a
// single dash, no leading or trailing dash. Returns "" if nothing usable
// remains.
func AppName(repoURL string) string {
	segment := path.Base(strings.TrimSuffix(strings.TrimRight(repoURL, "/"), ".git"))
	if segment == "." || segment == "/" {
		return ""
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(segment) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		default:
			pendingDash = true
		}
	}
	return b.String()
}

// Valid reports whether a derived name satisfies the shared character set of
// Docker, the filesystem, and nginx.
func Valid(name string) bool {
	return namePattern.MatchString(name)
}

// ReleasePath returns the remote path of this run's release directory.
func (id Identity) ReleasePath() string {
	return id.RemoteBase + "/" + id.ReleaseDir
}

// ContainerName returns the name of the managed container.
func (id Identity) ContainerName() string {
	return id.AppName
}

// ImageTag returns the tag used for single-image builds.
func (id Identity) ImageTag() string {
	return id.AppName
}

// ProxyConfigName returns the nginx config file stem.
func (id Identity) ProxyConfigName() string {
	return id.AppName
}
