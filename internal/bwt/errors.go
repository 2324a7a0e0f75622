package bwt

import "errors"

// Failure kinds of a poll cycle. Callers dispatch with errors.Is; the
// wrapped message carries the specific cause.
var (
	// ErrAuthentication covers bad credentials and the vendor quirk of
	// answering 200 with no session cookies.
	ErrAuthentication = errors.New("authentication failed")

	// ErrTransport covers network failures and non-success statuses
	// that survived the single re-login retry.
	ErrTransport = errors.New("transport failure")

	// ErrMalformedResponse covers bodies that are not JSON or lack the
	// dataset object.
	ErrMalformedResponse = errors.New("malformed response")
)
