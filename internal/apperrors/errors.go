// internal/apperrors/errors.go
package apperrors

import "fmt"

// NotFoundError means a referenced campaign/profile/drive/token does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func NewNotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// InvalidTransitionError is returned when a drive lifecycle guard is unmet.
// Reason names the violated precondition so the operator sees what failed.
type InvalidTransitionError struct {
	DriveID string
	From    string
	To      string
	Reason  string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s for drive %s: %s", e.From, e.To, e.DriveID, e.Reason)
}

func NewInvalidTransition(driveID, from, to, reason string) error {
	return &InvalidTransitionError{DriveID: driveID, From: from, To: to, Reason: reason}
}

// ConflictError means an identifier is already bound to a different record.
type ConflictError struct {
	Resource string
	ID       string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Resource, e.ID)
}

func NewConflict(resource, id string) error {
	return &ConflictError{Resource: resource, ID: id}
}

// UnauthorizedError means a webhook payload failed the shared-secret check.
type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized: %s", e.Reason)
}

func NewUnauthorized(reason string) error {
	return &UnauthorizedError{Reason: reason}
}

// UnknownTokenError means a webhook referenced an external token identifier
// that is not in the registry. Stale or foreign callback, not a transient error.
type UnknownTokenError struct {
	ExternalID string
}

func (e *UnknownTokenError) Error() string {
	return fmt.Sprintf("unknown token %q", e.ExternalID)
}

func NewUnknownToken(externalID string) error {
	return &UnknownTokenError{ExternalID: externalID}
}

// UpstreamUnavailableError means the honeytoken service could not be reached.
// Retryable; the drive stays in its current state.
type UpstreamUnavailableError struct {
	Op  string
	Err error
}

func (e *UpstreamUnavailableError) Error() string {
	return fmt.Sprintf("honeytoken service unavailable during %s: %v", e.Op, e.Err)
}

func (e *UpstreamUnavailableError) Unwrap() error { return e.Err }

func NewUpstreamUnavailable(op string, err error) error {
	return &UpstreamUnavailableError{Op: op, Err: err}
}
