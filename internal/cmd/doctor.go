package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/moor/internal/remote"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the local environment before a deployment",
	Long: `Check the local prerequisites a deployment needs: the SSH key, the
known_hosts file for host verification, and the workspace directory.

Remote checks are deliberately out of scope here; a dry run (moor --dry-run)
covers connectivity without mutating anything.`,
	RunE: runDoctor,
}

// doctorCheck is one named pass/fail line in the report.
type doctorCheck struct {
	Name    string
	OK      bool
	Message string
}

func init() {
	doctorCmd.Flags().StringVar(&rootFlags.key, "key", "", "path to the SSH private key")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	var checks []doctorCheck

	if rootFlags.key == "" {
		checks = append(checks, doctorCheck{
			Name:    "ssh key",
			Message: "no --key given; skipping key check",
			OK:      true,
		})
	} else if err := remote.CheckKey(rootFlags.key); err != nil {
		checks = append(checks, doctorCheck{Name: "ssh key", Message: err.Error()})
	} else {
		checks = append(checks, doctorCheck{Name: "ssh key", OK: true, Message: rootFlags.key + " parses"})
	}

	checks = append(checks, checkKnownHosts())
	checks = append(checks, checkWorkspace())

	healthy := true
	for _, c := range checks {
		mark := okStyle.Render("✓")
		if !c.OK {
			mark = failStyle.Render("✗")
			healthy = false
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", mark, c.Name, c.Message)
	}

	if !healthy {
		return fmt.Errorf("doctor found problems")
	}
	return nil
}

func checkKnownHosts() doctorCheck {
	home, err := os.UserHomeDir()
	if err != nil {
		return doctorCheck{Name: "known_hosts", Message: err.Error()}
	}
	path := filepath.Join(home, ".ssh", "known_hosts")
	if _, err := os.Stat(path); err != nil {
		return doctorCheck{
			Name:    "known_hosts",
			Message: path + " missing; connect once with ssh or use --insecure-host-key",
		}
	}
	return doctorCheck{Name: "known_hosts", OK: true, Message: path}
}

func checkWorkspace() doctorCheck {
	home, err := moorHome()
	if err != nil {
		return doctorCheck{Name: "workspace", Message: err.Error()}
	}
	dir := filepath.Join(home, "workspaces")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return doctorCheck{Name: "workspace", Message: err.Error()}
	}
	return doctorCheck{Name: "workspace", OK: true, Message: dir + " writable"}
}
