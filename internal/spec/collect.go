package spec

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
)

// CollectMissing prompts the operator for every required field the spec does
// not carry yet. It leaves already-populated fields untouched so flags and
// spec files take precedence over prompts.
func CollectMissing(s *DeploymentSpec) error {
	var fields []huh.Field

	if s.RepoURL == "" {
		fields = append(fields, huh.NewInput().
			Title("Repository URL").
			Placeholder("https://github.com/you/app.git").
			Value(&s.RepoURL))
	}
	if s.Branch == "" {
		s.Branch = "main"
		fields = append(fields, huh.NewInput().
			Title("Branch").
			Value(&s.Branch))
	}
	if s.Token == "" {
		fields = append(fields, huh.NewInput().
			Title("Repository access token (empty for public repos)").
			EchoMode(huh.EchoModePassword).
			Value(&s.Token))
	}
	if s.Host == "" {
		fields = append(fields, huh.NewInput().
			Title("Remote host address").
			Placeholder("203.0.113.10").
			Value(&s.Host))
	}
	if s.SSHUser == "" {
		fields = append(fields, huh.NewInput().
			Title("SSH user").
			Placeholder("ubuntu").
			Value(&s.SSHUser))
	}
	if s.KeyPath == "" {
		fields = append(fields, huh.NewInput().
			Title("SSH private key path").
			Placeholder("~/.ssh/id_ed25519").
			Value(&s.KeyPath))
	}

	var port string
	if s.ContainerPort == 0 {
		port = strconv.Itoa(DefaultContainerPort)
		fields = append(fields, huh.NewInput().
			Title("Container port").
			Value(&port).
			Validate(func(v string) error {
				n, err := strconv.Atoi(v)
				if err != nil || n < 1 || n > 65535 {
					return fmt.Errorf("enter a port between 1 and 65535")
				}
				return nil
			}))
	}

	if len(fields) == 0 {
		return nil
	}

	form := huh.NewForm(huh.NewGroup(fields...))
	if err := form.Run(); err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}

	if port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid port %q", port)
		}
		s.ContainerPort = n
	}

	return nil
}
