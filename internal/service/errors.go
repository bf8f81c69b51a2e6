package service

import "errors"

var (
	// ErrNotFound: the document does not exist or is not visible to the caller.
	ErrNotFound = errors.New("document not found")
	// ErrAccessDenied covers every limiter and token denial with one value.
	ErrAccessDenied = errors.New("access denied")
	// ErrUnrecoverable: neither stored copy yields plaintext that matches the recorded hash.
	ErrUnrecoverable = errors.New("document unrecoverable")
	// ErrRetryable: object storage timed out twice.
	ErrRetryable = errors.New("storage temporarily unavailable")
	// ErrInvalidInput wraps caller mistakes such as empty names or content.
	ErrInvalidInput = errors.New("invalid input")
)
