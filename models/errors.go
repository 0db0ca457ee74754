package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrUnknownStatus          = errors.New("unknown status")
	ErrUnknownCategory        = errors.New("unknown incident category")
	ErrDisallowedValueType    = errors.New("value type not allowed for this workflow")
	ErrDisallowedContainer    = errors.New("container not allowed for this workflow")
	ErrTransactionNotFound    = errors.New("cash transaction not found")
	ErrIncidentNotFound       = errors.New("incident not found")
	ErrContainerNotFound      = errors.New("container not found")
	ErrValueDetailNotFound    = errors.New("value detail not found")
	ErrIncidentLocked         = errors.New("incident can only be changed while reported")
	ErrConcurrentUpdate       = errors.New("cash transaction was modified concurrently")
	ErrDuplicateContainerCode = errors.New("duplicate container code")
	ErrSubmissionNotAllowed   = errors.New("containers cannot be submitted in the current status")
	ErrPolicyRejected         = errors.New("rejected by counting policy")
	ErrPendingIncidents       = errors.New("transaction has unresolved incidents")
	ErrOutOfTolerance         = errors.New("declared and counted values differ beyond tolerance")
	ErrWorkflowMismatch       = errors.New("operation does not apply to this workflow")
	ErrNegativeAmount         = errors.New("value detail amounts must not be negative")
)

// InvalidTransitionError carries enough detail for the caller to render an
// actionable message. It matches ErrInvalidTransition with errors.Is.
type InvalidTransitionError struct {
	Entity  string
	Id      int
	Current string
	Target  string
	Allowed []string
	Cause   error
}

func (e *InvalidTransitionError) Error() string {
	allowed := "none"
	if len(e.Allowed) > 0 {
		allowed = strings.Join(e.Allowed, ", ")
	}
	msg := fmt.Sprintf("invalid transition of %s %d from %q to %q (allowed: %s)", e.Entity, e.Id, e.Current, e.Target, allowed)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func (e *InvalidTransitionError) Unwrap() error {
	return e.Cause
}
