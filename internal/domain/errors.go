package domain

import "errors"

// Sentinel errors for the realtime core. Authentication and authorization
// errors are fatal to a connection; everything else is recoverable and stays
// scoped to the frame that caused it.
var (
	ErrMissingCredential   = errors.New("no credential presented")
	ErrMalformedCredential = errors.New("credential is malformed")
	ErrExpiredCredential   = errors.New("credential is expired or invalid")
	ErrUnauthorizedRoom    = errors.New("user may not join this room")
	ErrNotFound            = errors.New("requested resource not found")
)

// IsConnectionFatal reports whether an error must terminate the connection
// rather than produce an error frame.
func IsConnectionFatal(err error) bool {
	return errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, ErrMalformedCredential) ||
		errors.Is(err, ErrExpiredCredential) ||
		errors.Is(err, ErrUnauthorizedRoom)
}
