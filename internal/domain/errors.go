package domain

import "errors"

var (
	// ErrConfiguration reports missing or invalid settings, such as empty session cookies.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransport reports a network or HTTP failure talking to the question bank.
	ErrTransport = errors.New("transport error")
	// ErrMalformedResponse reports a response whose shape is not what we expect.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrDuplicateID reports an insert of a question id that is already stored.
	ErrDuplicateID = errors.New("duplicate question id")
	// ErrNotFound reports a point lookup that matched nothing.
	ErrNotFound = errors.New("not found")
)
