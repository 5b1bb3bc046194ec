/*
Package errs provides the client-side error taxonomy.

This file defines the failure-class codes and the template table used by
errs.New to build ClientError values.
*/
package errs

const (
	// ErrUnknown covers failures with no more specific classification.
	ErrUnknown = 10000

	// ErrInvalidCredentials means the login form yielded no auth token.
	// Fatal for the login call that triggered it.
	ErrInvalidCredentials = 20001

	// ErrKickedOff means the server forced a logout, or a reconnect's
	// credential re-check failed. The session is torn down.
	ErrKickedOff = 20002

	// ErrNotConnected means an API call was made while the session is not
	// running. The session itself is unaffected.
	ErrNotConnected = 20003

	// ErrLoginDenied means the room refused the handshake outright.
	ErrLoginDenied = 20004

	// ErrMalformedRecord means an incoming record could not be parsed far
	// enough to act on. Never fatal for the receive loop.
	ErrMalformedRecord = 30001
)

// errorMap holds the template for every known failure class.
var errorMap = map[int]ClientError{
	ErrUnknown:            {Code: ErrUnknown, Message: "unknown error"},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "invalid credentials"},
	ErrKickedOff:          {Code: ErrKickedOff, Message: "kicked off by server"},
	ErrNotConnected:       {Code: ErrNotConnected, Message: "not connected"},
	ErrLoginDenied:        {Code: ErrLoginDenied, Message: "login denied by room"},
	ErrMalformedRecord:    {Code: ErrMalformedRecord, Message: "malformed record"},
}
