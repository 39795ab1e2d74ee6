package pump

import "errors"

// Domain errors for the pump package.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnectionFailed is returned when the gateway cannot be reached
	// (transport, DNS, connection refused).
	ErrConnectionFailed = errors.New("pump: connection to gateway failed")

	// ErrTimeout is returned when an operation exceeds its read or write
	// timeout. A timed-out operation counts as a failure for retry purposes.
	ErrTimeout = errors.New("pump: operation timed out")

	// ErrValidation is returned for malformed addresses, out-of-range byte
	// widths, or non-positive scale factors. Never retried.
	ErrValidation = errors.New("pump: validation failed")

	// ErrDevice is returned when the gateway answers with a non-2xx status
	// or a semantically invalid payload.
	ErrDevice = errors.New("pump: device error")

	// ErrWriteFailed wraps the underlying failure of a write operation once
	// retries are exhausted. Writes must surface failure to the caller.
	ErrWriteFailed = errors.New("pump: write failed")

	// ErrClosed is returned when an operation is attempted on a closed client.
	ErrClosed = errors.New("pump: client closed")

	// ErrNoUUID is returned when the system UUID cannot be discovered.
	ErrNoUUID = errors.New("pump: system uuid not available")
)
