package types

import "errors"

var (
	// ErrNotFound is wrapped by lookups of unknown flows, requests,
	// environments and collections
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedProtocol is returned when no executor accepts a request
	ErrUnsupportedProtocol = errors.New("unsupported protocol")

	// ErrInvalidFlow is wrapped when a flow definition is malformed
	ErrInvalidFlow = errors.New("invalid flow")
)
