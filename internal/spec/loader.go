package spec

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/moor/internal/errors"
)

// LoadFile reads a DeploymentSpec from a YAML file. Flags and interactive
// answers are applied on top of it by the caller, so a partial file is fine.
func LoadFile(path string) (*DeploymentSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInputBadSpecFile,
			fmt.Sprintf("cannot read spec file %s", path), err)
	}

	var s DeploymentSpec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInputBadSpecFile,
			fmt.Sprintf("cannot parse spec file %s", path), err).
			WithSuggestion("Check the YAML syntax; expected keys: repo, branch, token, ssh_user, host, key, port")
	}

	return &s, nil
}
