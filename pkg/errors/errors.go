// Package errors provides common domain error types for council-records.
//
// This package defines sentinel errors for conditions like a missing input file
// or an unreadable document that can be used across all packages. Using typed
// errors enables consistent error handling patterns with errors.Is() checks.
//
// Usage:
//
//	import ierrors "github.com/otherjamesbrown/council-records/pkg/errors"
//
//	// Return a domain error
//	return nil, fmt.Errorf("%w: %s", ierrors.ErrInputMissing, path)
//
//	// Check for domain errors
//	if ierrors.IsInputMissing(err) {
//	    // handle missing input
//	}
package errors

import "errors"

// Domain errors - common sentinel errors for domain conditions.
var (
	// ErrNotFound indicates the requested record was not found.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates invalid input or validation failure.
	ErrValidation = errors.New("validation error")

	// ErrInputMissing indicates a source document does not exist.
	ErrInputMissing = errors.New("input missing")

	// ErrUnreadable indicates a source document exists but its text could not be extracted.
	ErrUnreadable = errors.New("unreadable document")

	// ErrOutOfBounds indicates a page range outside the document.
	ErrOutOfBounds = errors.New("page range out of bounds")

	// ErrInvalidState indicates the operation is not valid for the current state.
	ErrInvalidState = errors.New("invalid state")
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInputMissing reports whether any error in err's chain is ErrInputMissing.
func IsInputMissing(err error) bool {
	return errors.Is(err, ErrInputMissing)
}

// IsUnreadable reports whether any error in err's chain is ErrUnreadable.
func IsUnreadable(err error) bool {
	return errors.Is(err, ErrUnreadable)
}

// IsOutOfBounds reports whether any error in err's chain is ErrOutOfBounds.
func IsOutOfBounds(err error) bool {
	return errors.Is(err, ErrOutOfBounds)
}

// IsInvalidState reports whether any error in err's chain is ErrInvalidState.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}
