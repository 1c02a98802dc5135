package apperr

import "errors"

// Sentinel errors for the comment lifecycle core. Services return these (or
// wrap them with %w); handlers and the websocket dispatcher map them to
// transport-level responses at the edge.
var (
	// ErrValidation marks malformed input rejected before any side effect.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized marks a missing or invalid identity.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden marks a role or ownership mismatch. Responses built from
	// it must not reveal whether the target exists.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound marks a missing comment, report or notification.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateReport marks a second open report by the same reporter on
	// the same comment.
	ErrDuplicateReport = errors.New("duplicate report")

	// ErrInvalidTarget marks a report against a missing or deleted comment.
	ErrInvalidTarget = errors.New("invalid report target")

	// ErrDepthExceeded marks a reply past the configured nesting limit.
	ErrDepthExceeded = errors.New("maximum nesting depth exceeded")

	// ErrConflict marks a state transition the comment's current status
	// refuses, such as moving between two terminal statuses.
	ErrConflict = errors.New("conflict")

	// ErrExternalService marks a collaborator failure (classifier, broker).
	// It is logged but never surfaced to end users.
	ErrExternalService = errors.New("external service failure")
)

// Is reports whether err matches target, following wrap chains.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
