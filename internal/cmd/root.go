package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/moor/internal/audit"
	"github.com/felixgeelhaar/moor/internal/errors"
	"github.com/felixgeelhaar/moor/internal/log"
	"github.com/felixgeelhaar/moor/internal/pipeline"
	"github.com/felixgeelhaar/moor/internal/remote"
	"github.com/felixgeelhaar/moor/internal/spec"
	"github.com/felixgeelhaar/moor/internal/validate"
	"github.com/felixgeelhaar/moor/internal/workspace"
)

var rootFlags struct {
	specFile string

	repo       string
	branch     string
	token      string
	user       string
	host       string
	key        string
	port       int
	remoteBase string

	dryRun  bool
	cleanup bool

	nonInteractive  bool
	insecureHostKey bool
	probeRetries    uint64

	logLevel  string
	logFormat string
}

var rootCmd = &cobra.Command{
	Use:   "moor",
	Short: "Deploy a containerized application to a single host behind nginx",
	Long: `moor provisions one remote host over SSH and deploys a containerized
application onto it from a git repository, fronted by an nginx reverse proxy.

One invocation runs the whole sequence: repository sync, connectivity check,
host provisioning, artifact transfer, container build and run, proxy
configuration, and a post-deploy probe. Runs are safe to repeat: resources are
keyed by a name derived from the repository, so a re-deploy replaces them
instead of duplicating them.`,
	Example: `  # Full deploy, prompting for anything not passed as a flag
  moor --repo https://github.com/you/app.git --host 203.0.113.10 --user ubuntu --key ~/.ssh/deploy

  # Show what would happen without mutating the host
  moor --dry-run --file deploy.yaml

  # Tear a previous deployment down
  moor --cleanup --file deploy.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

// ExecuteContext runs the root command
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&rootFlags.specFile, "file", "", "YAML file with deployment parameters")
	f.StringVar(&rootFlags.repo, "repo", "", "repository URL to deploy")
	f.StringVar(&rootFlags.branch, "branch", "", "branch to deploy (default main)")
	f.StringVar(&rootFlags.token, "token", "", "repository access token for private repositories")
	f.StringVar(&rootFlags.user, "user", "", "SSH user on the remote host")
	f.StringVar(&rootFlags.host, "host", "", "remote host address")
	f.StringVar(&rootFlags.key, "key", "", "path to the SSH private key")
	f.IntVar(&rootFlags.port, "port", 0, fmt.Sprintf("container listen port (default %d)", spec.DefaultContainerPort))
	f.StringVar(&rootFlags.remoteBase, "remote-base", "", "remote base directory for releases (default ~/deployments)")

	f.BoolVar(&rootFlags.dryRun, "dry-run", false, "check credentials and connectivity, record commands, mutate nothing")
	f.BoolVar(&rootFlags.cleanup, "cleanup", false, "tear down the resources a previous deploy created")

	f.BoolVar(&rootFlags.nonInteractive, "non-interactive", false, "never prompt; fail on missing fields")
	f.BoolVar(&rootFlags.insecureHostKey, "insecure-host-key", false, "skip SSH host key verification")
	f.Uint64Var(&rootFlags.probeRetries, "probe-retries", 0, "retry unreachable post-deploy probes up to N extra times")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&rootFlags.logFormat, "log-format", "text", "log format (text, json)")
}

func runRoot(cmd *cobra.Command, args []string) error {
	logger := log.New(log.Config{
		Level:  log.ParseLevel(rootFlags.logLevel),
		Format: log.ParseFormat(rootFlags.logFormat),
	})
	log.SetDefaultLogger(logger)

	s, err := buildSpec()
	if err != nil {
		return err
	}

	home, err := moorHome()
	if err != nil {
		return err
	}

	workspaces, err := workspace.NewManager(filepath.Join(home, "workspaces"))
	if err != nil {
		return err
	}

	trail, err := audit.New(filepath.Join(home, "runs"))
	if err != nil {
		return err
	}
	defer trail.Close()

	p := &pipeline.Pipeline{
		Spec:       s,
		Workspaces: workspaces,
		Trail:      trail,
		Logger:     logger,
		Dial: func(ctx context.Context) (remote.Executor, error) {
			return remote.DialSSH(ctx, remote.SSHConfig{
				User:            s.SSHUser,
				Host:            s.Host,
				KeyPath:         s.KeyPath,
				InsecureHostKey: rootFlags.insecureHostKey,
			})
		},
		Prober:        &validate.Prober{},
		ProbeAttempts: rootFlags.probeRetries + 1,
	}

	result := p.Run(cmd.Context())
	printRunResult(cmd.OutOrStdout(), result)

	return result.Err
}

// buildSpec layers flag values over the optional spec file, then prompts for
// whatever is still missing unless prompting was disabled.
func buildSpec() (*spec.DeploymentSpec, error) {
	s := &spec.DeploymentSpec{}
	if rootFlags.specFile != "" {
		loaded, err := spec.LoadFile(rootFlags.specFile)
		if err != nil {
			return nil, err
		}
		s = loaded
	}

	if rootFlags.repo != "" {
		s.RepoURL = rootFlags.repo
	}
	if rootFlags.branch != "" {
		s.Branch = rootFlags.branch
	}
	if rootFlags.token != "" {
		s.Token = rootFlags.token
	}
	if rootFlags.user != "" {
		s.SSHUser = rootFlags.user
	}
	if rootFlags.host != "" {
		s.Host = rootFlags.host
	}
	if rootFlags.key != "" {
		s.KeyPath = rootFlags.key
	}
	if rootFlags.port != 0 {
		s.ContainerPort = rootFlags.port
	}
	if rootFlags.remoteBase != "" {
		s.RemoteBase = rootFlags.remoteBase
	}

	switch {
	case rootFlags.dryRun && rootFlags.cleanup:
		return nil, errors.New(errors.ErrCodeInputMissingField,
			"--dry-run and --cleanup are mutually exclusive")
	case rootFlags.dryRun:
		s.Mode = spec.ModeDryRun
	case rootFlags.cleanup:
		s.Mode = spec.ModeCleanup
	default:
		s.Mode = spec.ModeDeploy
	}

	if !rootFlags.nonInteractive {
		if err := spec.CollectMissing(s); err != nil {
			return nil, err
		}
	}

	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func moorHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot locate home directory: %w", err)
	}
	return filepath.Join(home, ".moor"), nil
}
