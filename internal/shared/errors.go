package shared

import "errors"

var (
	// ErrInvalidCredentials indicates sign-in failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated indicates a request without a signed-in session.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
	// ErrConflict is wrapped by domain errors that map to 409.
	ErrConflict = errors.New("conflict")
	// ErrBadRequest is wrapped by malformed input errors.
	ErrBadRequest = errors.New("bad request")
	// ErrPartialFailure is matched by errors that left stored data
	// inconsistent after a failed rollback.
	ErrPartialFailure = errors.New("partial failure")
)
