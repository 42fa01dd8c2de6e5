package learnworlds

import "errors"

// Kind classifies gateway failures so callers never match on message text.
type Kind string

const (
	KindInvalidCredentials Kind = "invalid_credentials"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindUnavailable        Kind = "unavailable"
	KindNotConfigured      Kind = "not_configured"
)

// Error is a classified provider failure. Message carries upstream detail for
// logs only; it must not be echoed to clients.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf extracts the failure kind, defaulting to unavailable for anything
// unclassified (timeouts, network errors).
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnavailable
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
