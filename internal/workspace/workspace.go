// Package workspace materializes the target repository locally and inspects
// it for a deployable build descriptor before any remote session is opened.
package workspace

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/felixgeelhaar/moor/internal/errors"
	"github.com/felixgeelhaar/moor/internal/spec"
)

// DescriptorKind classifies how the application is built and run.
type DescriptorKind string

const (
	// KindCompose is a multi-service descriptor (docker compose)
	KindCompose DescriptorKind = "compose"
	// KindDockerfile is a single-image descriptor
	KindDockerfile DescriptorKind = "dockerfile"
	// KindNone means nothing deployable was found
	KindNone DescriptorKind = "none"
)

// Compose file names in detection priority order, multi-service first.
var composeNames = []string{
	"docker-compose.yml",
	"docker-compose.yaml",
	"compose.yml",
	"compose.yaml",
}

// Artifact is the synced working copy handed to the remote stages.
type Artifact struct {
	Dir            string
	Revision       string
	Descriptor     DescriptorKind
	DescriptorFile string
}

// Manager owns per-repository working copies under a common root.
type Manager struct {
	root string
}

// NewManager ensures the workspace root exists and is accessible.
func NewManager(root string) (*Manager, error) {
	if root == "" {
		return nil, fmt.Errorf("workspace root cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSourceWorkspace, "create workspace root", err)
	}
	return &Manager{root: root}, nil
}

// Root returns the workspace root directory.
func (m *Manager) Root() string {
	return m.root
}

// Dir returns the working-copy directory used for the given application name.
// The directory is keyed by name, not by run, so a second run of the same
// repository fetches into the existing copy instead of re-cloning.
func (m *Manager) Dir(appName string) string {
	return filepath.Join(m.root, appName)
}

// Sync materializes the repository at the requested branch and detects its
// build descriptor. It fails before any remote contact if the artifact is not
// deployable.
func (m *Manager) Sync(ctx context.Context, s *spec.DeploymentSpec, appName string) (*Artifact, error) {
	dir := m.Dir(appName)

	repo, err := m.openOrClone(ctx, s, dir)
	if err != nil {
		return nil, err
	}

	rev, err := checkoutBranch(ctx, repo, s)
	if err != nil {
		return nil, err
	}

	kind, file := DetectDescriptor(dir)
	if kind == KindNone {
		return nil, errors.NewNoBuildDescriptorError(dir)
	}

	return &Artifact{
		Dir:            dir,
		Revision:       rev,
		Descriptor:     kind,
		DescriptorFile: file,
	}, nil
}

func (m *Manager) openOrClone(ctx context.Context, s *spec.DeploymentSpec, dir string) (*git.Repository, error) {
	repo, err := git.PlainOpen(dir)
	if err == nil {
		if ferr := fetch(ctx, repo, s); ferr != nil {
			return nil, ferr
		}
		return repo, nil
	}
	if !stderrors.Is(err, git.ErrRepositoryNotExists) {
		return nil, errors.Wrap(errors.ErrCodeSourceWorkspace,
			fmt.Sprintf("cannot open working copy %s", dir), err)
	}

	repo, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:  s.RepoURL,
		Auth: auth(s),
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSourceUnavailable,
			fmt.Sprintf("cannot clone %s", s.RepoURL), err).
			WithSuggestion("Check the repository URL and access token").
			WithSuggestion("For private repositories, supply --token")
	}
	return repo, nil
}

func fetch(ctx context.Context, repo *git.Repository, s *spec.DeploymentSpec) error {
	err := repo.FetchContext(ctx, &git.FetchOptions{
		Auth:  auth(s),
		Force: true,
	})
	if err != nil && !stderrors.Is(err, git.NoErrAlreadyUpToDate) {
		return errors.Wrap(errors.ErrCodeSourceUnavailable,
			fmt.Sprintf("cannot fetch %s", s.RepoURL), err)
	}
	return nil
}

// checkoutBranch checks out the requested branch at the remote tip and
// returns the resolved revision.
func checkoutBranch(ctx context.Context, repo *git.Repository, s *spec.DeploymentSpec) (string, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeSourceWorkspace, "cannot open worktree", err)
	}

	ref, err := repo.Reference(plumbing.NewRemoteReferenceName(git.DefaultRemoteName, s.Branch), true)
	if err != nil {
		// Fresh clones of local repositories have no remote-tracking refs;
		// fall back to the local branch name before giving up.
		ref, err = repo.Reference(plumbing.NewBranchReferenceName(s.Branch), true)
	}
	if err != nil {
		return "", errors.Newf(errors.ErrCodeRevisionNotFound,
			"branch %q not found in %s", s.Branch, s.RepoURL).
			WithSuggestion("Check the branch name; the default is main")
	}

	if err := wt.Checkout(&git.CheckoutOptions{Hash: ref.Hash(), Force: true}); err != nil {
		return "", errors.Wrap(errors.ErrCodeRevisionNotFound,
			fmt.Sprintf("cannot check out %s", ref.Hash()), err)
	}

	return ref.Hash().String(), nil
}

func auth(s *spec.DeploymentSpec) transport.AuthMethod {
	if s.Token == "" || !strings.HasPrefix(s.RepoURL, "http") {
		return nil
	}
	// GitHub and GitLab both accept a token as the basic-auth username.
	return &http.BasicAuth{Username: s.Token, Password: "x-oauth-basic"}
}

// DetectDescriptor inspects a directory root for a build descriptor,
// preferring a multi-service descriptor over a single-image one.
func DetectDescriptor(dir string) (DescriptorKind, string) {
	for _, name := range composeNames {
		if fileExists(filepath.Join(dir, name)) {
			return KindCompose, name
		}
	}
	if fileExists(filepath.Join(dir, "Dockerfile")) {
		return KindDockerfile, "Dockerfile"
	}
	return KindNone, ""
}

// Cleanup removes a working copy, refusing paths outside the root.
func (m *Manager) Cleanup(path string) error {
	rel, err := filepath.Rel(m.root, path)
	if err != nil || rel == "." || rel == "" || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("refusing to cleanup path outside workspace root")
	}
	return os.RemoveAll(path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
