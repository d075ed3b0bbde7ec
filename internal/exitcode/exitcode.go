package exitcode

import (
	"os"
	"strings"

	"github.com/felixgeelhaar/moor/internal/errors"
)

// Exit codes for consistent error handling across the CLI. Automation branches
// on these, so each fatal failure class gets its own code.
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// InputError indicates an invalid or incomplete deployment spec
	InputError = 2

	// ToolingError indicates a required local capability is absent
	ToolingError = 3

	// ConnectivityError indicates the remote host was unreachable or rejected auth
	ConnectivityError = 4

	// ProvisionError indicates remote dependency installation failed
	ProvisionError = 5

	// TransferError indicates the artifact could not be copied to the host
	TransferError = 6

	// DeployError indicates the remote build or container start failed
	DeployError = 7

	// ProxyError indicates the reverse-proxy config could not be activated
	ProxyError = 8

	// ValidationError indicates the deployed service was unreachable
	ValidationError = 9

	// Interrupted indicates the operator cancelled the run
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}
	Exit(FromError(err))
}

// FromError analyzes an error and returns the appropriate exit code
func FromError(err error) int {
	if err == nil {
		return Success
	}

	switch errors.CodeOf(err).Category() {
	case "INPUT":
		return InputError
	case "TOOLING":
		return ToolingError
	case "SOURCE":
		// A bad repository or missing descriptor is an input problem for automation.
		return InputError
	case "CONN":
		return ConnectivityError
	case "PROVISION":
		return ProvisionError
	case "TRANSFER":
		return TransferError
	case "DEPLOY":
		return DeployError
	case "PROXY":
		return ProxyError
	case "VALIDATE":
		return ValidationError
	}

	// Uncoded errors: fall back to message sniffing for cobra usage errors.
	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "unknown flag") || strings.Contains(errMsg, "unknown command") {
		return InputError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "invalid argument") {
		return InputError
	}

	return GeneralError
}

// Description returns a human-readable description of an exit code
func Description(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case InputError:
		return "Invalid deployment spec or repository"
	case ToolingError:
		return "Missing local tooling"
	case ConnectivityError:
		return "Remote host unreachable"
	case ProvisionError:
		return "Remote provisioning failed"
	case TransferError:
		return "Artifact transfer failed"
	case DeployError:
		return "Remote build or run failed"
	case ProxyError:
		return "Reverse-proxy configuration failed"
	case ValidationError:
		return "Post-deploy validation failed"
	case Interrupted:
		return "Interrupted by operator"
	default:
		return "Unknown error"
	}
}
