package utils

import "errors"

var (
	// ErrNotFound covers both "never stored" and "expired"; callers cannot
	// tell the two apart.
	ErrNotFound = errors.New("record not found")

	// ErrUpstreamUnavailable marks a failed fetch from the booking platform.
	// It is never cached and never converted to ErrNotFound.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrConfigMissing marks required configuration absent at request time.
	// Fatal for the request path, never for the process.
	ErrConfigMissing = errors.New("required configuration missing")
)
