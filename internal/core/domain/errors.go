// Package domain contains the core domain types and pure resolution logic.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain

import (
	"errors"
	"fmt"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// Configuration errors
	ErrUnknownProfile = errors.New("unknown deployment profile")
	ErrNoArtifact     = errors.New("no packaged artifact available")
	ErrNoSCMHost      = errors.New("no SCM hostname enabled on site")
	ErrNoCachedToken  = errors.New("no cached token for account")

	// Deployment errors
	ErrDeploymentRejected     = errors.New("control plane rejected deployment")
	ErrSiteLookupFailed       = errors.New("site lookup failed")
	ErrSiteMissingAfterDeploy = errors.New("site absent after successful deployment")

	// Transfer errors
	ErrUploadRejected = errors.New("upload endpoint rejected artifact")
)

// DeployError wraps errors with the operation and workflow stage that failed.
type DeployError struct {
	Op      string // Operation that failed
	Stage   string // Workflow stage (resolving, deploying, uploading, ...)
	Message string
	Err     error
}

func (e *DeployError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Op, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *DeployError) Unwrap() error {
	return e.Err
}

// NewDeployError creates a new DeployError.
func NewDeployError(op, stage, message string, err error) *DeployError {
	return &DeployError{
		Op:      op,
		Stage:   stage,
		Message: message,
		Err:     err,
	}
}
