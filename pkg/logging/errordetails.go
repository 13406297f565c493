package logging

import (
	"errors"
	"fmt"
	"strings"
)

// stackCarrier is implemented by errors that captured a stack trace.
type stackCarrier interface {
	StackTrace() []string
}

// namedError is implemented by errors with a stable logical name.
type namedError interface {
	ErrorName() string
}

// attachErrorDetails adds the dedicated failure fields for error and fatal
// severity when the message argument is an error value.
func attachErrorDetails(fields map[string]any, err error) {
	fields[FieldErrorName] = errorName(err)

	if lines := stackLines(err); len(lines) > 0 {
		fields[FieldStack] = lines
	}
	if cause := errors.Unwrap(err); cause != nil {
		fields[FieldCause] = reduceError(cause)
	}
}

// errorName returns an error's logical name: its declared name when it has
// one, otherwise its dynamic type.
func errorName(err error) string {
	if n, ok := err.(namedError); ok && n.ErrorName() != "" {
		return n.ErrorName()
	}
	return fmt.Sprintf("%T", err)
}

// stackLines returns the error's captured stack as an ordered sequence of
// trimmed, non-empty lines, or nil when no stack is available.
func stackLines(err error) []string {
	sc, ok := err.(stackCarrier)
	if !ok {
		return nil
	}

	raw := sc.StackTrace()
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) == 0 {
		return nil
	}
	return lines
}

// reduceError reduces a causal predecessor to {name, message, stack?},
// recursing through its own cause chain.
func reduceError(err error) map[string]any {
	out := map[string]any{
		"name":    errorName(err),
		"message": err.Error(),
	}
	if lines := stackLines(err); len(lines) > 0 {
		out["stack"] = lines
	}
	if cause := errors.Unwrap(err); cause != nil {
		out["cause"] = reduceError(cause)
	}
	return out
}
