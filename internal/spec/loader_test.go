package spec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/moor/internal/errors"
)

func writeSpecFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deploy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeSpecFile(t, `
repo: https://github.com/acme/flask-demo.git
branch: release
ssh_user: deploy
host: 203.0.113.7
key: ~/.ssh/id_ed25519
port: 8080
`)

	s, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/flask-demo.git", s.RepoURL)
	assert.Equal(t, "release", s.Branch)
	assert.Equal(t, "deploy", s.SSHUser)
	assert.Equal(t, "203.0.113.7", s.Host)
	assert.Equal(t, 8080, s.ContainerPort)
	assert.Empty(t, s.Token)
}

func TestLoadFilePartial(t *testing.T) {
	path := writeSpecFile(t, "repo: https://github.com/acme/app.git\n")

	s, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/app.git", s.RepoURL)
	assert.Empty(t, s.Host, "missing keys stay zero for the flag overlay")
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInputBadSpecFile, errors.CodeOf(err))
}

func TestLoadFileBadYAML(t *testing.T) {
	path := writeSpecFile(t, "repo: [unclosed\n")
	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInputBadSpecFile, errors.CodeOf(err))
}
