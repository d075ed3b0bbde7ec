package remote

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/felixgeelhaar/moor/internal/errors"
)

// DefaultDialTimeout bounds connection establishment. Command execution is
// deliberately unbounded: package installs and image builds run to completion
// or to the remote shell's own failure.
const DefaultDialTimeout = 15 * time.Second

// SSHConfig describes how to reach the host.
type SSHConfig struct {
	User        string
	Host        string
	KeyPath     string
	DialTimeout time.Duration

	// InsecureHostKey skips host key verification. Off by default; the
	// default policy checks ~/.ssh/known_hosts.
	InsecureHostKey bool
}

// SSHExecutor runs commands over a single multiplexed SSH connection,
// one session per command.
type SSHExecutor struct {
	client *ssh.Client
	host   string
}

// DialSSH establishes the SSH connection with key-based, non-interactive
// authentication and a bounded dial timeout.
func DialSSH(ctx context.Context, cfg SSHConfig) (*SSHExecutor, error) {
	signer, err := loadSigner(cfg.KeyPath)
	if err != nil {
		return nil, err
	}

	hostKeyCallback, err := hostKeyPolicy(cfg)
	if err != nil {
		return nil, err
	}

	timeout := cfg.DialTimeout
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}

	addr := cfg.Host
	if !strings.Contains(addr, ":") {
		addr = net.JoinHostPort(addr, "22")
	}

	clientCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.NewConnectivityError(cfg.Host, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(errors.ErrCodeConnAuth,
			fmt.Sprintf("SSH authentication to %s failed", cfg.Host), err).
			WithSuggestion("Check that the public key is in the remote user's authorized_keys")
	}

	return &SSHExecutor{
		client: ssh.NewClient(sshConn, chans, reqs),
		host:   cfg.Host,
	}, nil
}

func loadSigner(keyPath string) (ssh.Signer, error) {
	key, err := os.ReadFile(expandHome(keyPath))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeToolingKeyUnusable,
			fmt.Sprintf("cannot read SSH key %s", keyPath), err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeToolingKeyUnusable,
			fmt.Sprintf("cannot parse SSH key %s", keyPath), err).
			WithSuggestion("Passphrase-protected keys are not supported; use an unencrypted deploy key")
	}
	return signer, nil
}

// CheckKey verifies the private key exists and parses, as a pre-flight check
// before the pipeline commits to remote work.
func CheckKey(keyPath string) error {
	_, err := loadSigner(keyPath)
	return err
}

func hostKeyPolicy(cfg SSHConfig) (ssh.HostKeyCallback, error) {
	if cfg.InsecureHostKey {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // operator opt-in
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConnDial, "cannot locate known_hosts", err)
	}
	callback, err := knownhosts.New(filepath.Join(home, ".ssh", "known_hosts"))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConnDial, "cannot read known_hosts", err).
			WithSuggestion("Connect once with ssh to record the host key, or pass --insecure-host-key")
	}
	return callback, nil
}

// Run executes one command in a fresh session. Non-zero exit is reported in
// the Result; only transport failures become errors.
func (e *SSHExecutor) Run(ctx context.Context, c Cmd) (Result, error) {
	session, err := e.client.NewSession()
	if err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeConnSession,
			fmt.Sprintf("cannot open session to %s", e.host), err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if len(c.Stdin) > 0 {
		session.Stdin = bytes.NewReader(c.Stdin)
	}

	start := time.Now()

	done := make(chan error, 1)
	go func() { done <- session.Run(c.Line) }()

	select {
	case <-ctx.Done():
		// Operator interrupt: tear the session down and report the abort.
		session.Close()
		<-done
		return Result{}, ctx.Err()
	case err = <-done:
	}

	result := Result{
		Command:  c.Line,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		exitErr, ok := err.(*ssh.ExitError)
		if !ok {
			return Result{}, errors.Wrap(errors.ErrCodeConnSession,
				fmt.Sprintf("session to %s broke while running %q", e.host, c.Line), err)
		}
		result.ExitCode = exitErr.ExitStatus()
	}

	return result, nil
}

// Close shuts the underlying connection down.
func (e *SSHExecutor) Close() error {
	return e.client.Close()
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
