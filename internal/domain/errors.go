package domain

import "errors"

// Error taxonomy for the relay loop. Transient errors are logged and retried
// on the next poll; fatal errors unwind to the top level and set a non-zero
// exit code.
var (
	// ErrMissingEndpoint means no webhook URL is configured. Fatal, raised
	// before any control file is touched.
	ErrMissingEndpoint = errors.New("webhook endpoint not configured")

	// ErrWindowNotFound means no visible window title contains the configured
	// substring. Transient.
	ErrWindowNotFound = errors.New("window not found")

	// ErrInvalidRegion means the resolved capture rectangle degenerated to
	// zero width or height after clamping. Transient.
	ErrInvalidRegion = errors.New("invalid capture region")

	// ErrEmptyRegion means the requested rectangle lies fully outside the
	// virtual display. Transient.
	ErrEmptyRegion = errors.New("empty capture region")

	// ErrCaptureFailed wraps failures of the underlying screen-read
	// primitive. Transient.
	ErrCaptureFailed = errors.New("screen capture failed")

	// ErrRecognition wraps failures of the text-recognition engine. The
	// iteration is treated as having produced no text.
	ErrRecognition = errors.New("text recognition failed")

	// ErrDeliveryFailed means the webhook rejected or failed a dispatch.
	// Fatal: endpoint misconfiguration must be visible, not retried forever.
	ErrDeliveryFailed = errors.New("webhook delivery failed")
)
