package workspace

import (
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

type composeFile struct {
	Services map[string]struct {
		Image string `yaml:"image"`
		Build any    `yaml:"build"`
	} `yaml:"services"`
}

// Services lists the service names a compose descriptor declares, sorted for
// stable log output. Non-compose artifacts and unparseable files yield nil;
// the remote compose invocation surfaces real syntax errors.
func (a *Artifact) Services() []string {
	if a.Descriptor != KindCompose {
		return nil
	}

	data, err := os.ReadFile(filepath.Join(a.Dir, a.DescriptorFile))
	if err != nil {
		return nil
	}

	var cf composeFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil
	}

	names := make([]string, 0, len(cf.Services))
	for name := range cf.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
