package errors

import (
	"errors"
)

// As is a re-export of errors.As for convenient access in error handling code.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is is a re-export of errors.Is for convenient access in error handling code.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// IsDomain checks if an error is or wraps a DomainError.
func IsDomain(err error) bool {
	var derr *DomainError
	return errors.As(err, &derr)
}

// AsDomain returns the DomainError in err's chain, or nil.
func AsDomain(err error) *DomainError {
	var derr *DomainError
	if errors.As(err, &derr) {
		return derr
	}
	return nil
}

// TransportError is the re-raised, transport-native form of a classified
// failure for remote-call and message-event transports. It propagates to the
// transport's own error channel rather than being swallowed.
type TransportError struct {
	// Transport is the transport kind this error was raised on.
	Transport string

	// Payload is the remote-call-safe payload of the original failure.
	Payload map[string]any

	cause error
}

func (e *TransportError) Error() string {
	code, _ := e.Payload["code"].(string)
	message, _ := e.Payload["message"].(string)
	if code != "" {
		return code + ": " + message
	}
	return message
}

func (e *TransportError) Unwrap() error {
	return e.cause
}
