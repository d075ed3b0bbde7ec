package errors

import (
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories, one block per pipeline failure class
const (
	// Input errors (INPUT-001 to INPUT-099): malformed or missing spec fields
	ErrCodeInputMissingField ErrorCode = "INPUT-001"
	ErrCodeInputBadRepoURL   ErrorCode = "INPUT-002"
	ErrCodeInputBadPort      ErrorCode = "INPUT-003"
	ErrCodeInputEmptyName    ErrorCode = "INPUT-004"
	ErrCodeInputBadSpecFile  ErrorCode = "INPUT-005"

	// Tooling errors (TOOLING-001 to TOOLING-099): required local capability absent
	ErrCodeToolingGitMissing  ErrorCode = "TOOLING-001"
	ErrCodeToolingKeyUnusable ErrorCode = "TOOLING-002"

	// Source errors (SOURCE-001 to SOURCE-099): repository sync failures
	ErrCodeSourceUnavailable  ErrorCode = "SOURCE-001"
	ErrCodeRevisionNotFound   ErrorCode = "SOURCE-002"
	ErrCodeNoBuildDescriptor  ErrorCode = "SOURCE-003"
	ErrCodeSourceWorkspace    ErrorCode = "SOURCE-004"

	// Connectivity errors (CONN-001 to CONN-099): remote host unreachable
	ErrCodeConnDial    ErrorCode = "CONN-001"
	ErrCodeConnAuth    ErrorCode = "CONN-002"
	ErrCodeConnSession ErrorCode = "CONN-003"

	// Provisioning errors (PROVISION-001 to PROVISION-099)
	ErrCodeProvisionNoPkgManager ErrorCode = "PROVISION-001"
	ErrCodeProvisionInstall      ErrorCode = "PROVISION-002"
	ErrCodeProvisionVerify       ErrorCode = "PROVISION-003"

	// Transfer errors (TRANSFER-001 to TRANSFER-099)
	ErrCodeTransferArchive ErrorCode = "TRANSFER-001"
	ErrCodeTransferUpload  ErrorCode = "TRANSFER-002"

	// Remote deploy errors (DEPLOY-001 to DEPLOY-099)
	ErrCodeDeployBuild   ErrorCode = "DEPLOY-001"
	ErrCodeDeployRun     ErrorCode = "DEPLOY-002"
	ErrCodeDeployCompose ErrorCode = "DEPLOY-003"

	// Proxy errors (PROXY-001 to PROXY-099)
	ErrCodeProxyRender ErrorCode = "PROXY-001"
	ErrCodeProxySyntax ErrorCode = "PROXY-002"
	ErrCodeProxyReload ErrorCode = "PROXY-003"

	// Validation errors (VALIDATE-001 to VALIDATE-099)
	ErrCodeValidateUnreachable ErrorCode = "VALIDATE-001"
)

// Category returns the taxonomy prefix of the code ("INPUT", "PROXY", ...)
func (c ErrorCode) Category() string {
	s := string(c)
	if i := strings.IndexByte(s, '-'); i > 0 {
		return s[:i]
	}
	return s
}

// MoorError represents an enhanced error with code, suggestions, and cause
type MoorError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *MoorError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *MoorError) Unwrap() error {
	return e.Cause
}

// New creates a new MoorError
func New(code ErrorCode, message string) *MoorError {
	return &MoorError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new MoorError with a formatted message
func Newf(code ErrorCode, format string, args ...any) *MoorError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a new MoorError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *MoorError {
	return &MoorError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *MoorError) WithSuggestion(suggestion string) *MoorError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *MoorError) WithSuggestions(suggestions ...string) *MoorError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// CodeOf extracts the ErrorCode from an error chain, or "" if none is present
func CodeOf(err error) ErrorCode {
	for err != nil {
		if me, ok := err.(*MoorError); ok {
			return me.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}

// Common error constructors for frequently used errors

// NewMissingFieldError reports a required DeploymentSpec field that was not supplied
func NewMissingFieldError(field string) *MoorError {
	return Newf(ErrCodeInputMissingField, "required field is missing: %s", field).
		WithSuggestion(fmt.Sprintf("Pass --%s or add %q to the spec file", field, field)).
		WithSuggestion("Run without --non-interactive to be prompted for missing fields")
}

// NewEmptyNameError reports a repository URL from which no usable name could be derived
func NewEmptyNameError(repoURL string) *MoorError {
	return Newf(ErrCodeInputEmptyName, "cannot derive an application name from %q", repoURL).
		WithSuggestion("Use a repository URL whose last path segment contains letters or digits")
}

// NewNoBuildDescriptorError reports a synced repository with nothing deployable in it
func NewNoBuildDescriptorError(dir string) *MoorError {
	return Newf(ErrCodeNoBuildDescriptor, "no docker-compose file or Dockerfile found in %s", dir).
		WithSuggestion("Add a Dockerfile or docker-compose.yml to the repository root").
		WithSuggestion("Check that the requested branch contains the build files")
}

// NewConnectivityError reports a remote host that could not be reached or authenticated
func NewConnectivityError(host string, cause error) *MoorError {
	return Wrap(ErrCodeConnDial, fmt.Sprintf("cannot establish an SSH session to %s", host), cause).
		WithSuggestion("Verify the host address and that sshd is listening on it").
		WithSuggestion("Verify the SSH user and key path are correct")
}
