package domain

import "image"

// WindowLocator finds the target window on screen.
// Implementation: Win32 EnumWindows on Windows; a stub elsewhere.
type WindowLocator interface {
	// Locate returns the visible window whose title contains the substring.
	// When several match, the one with the largest outer area wins (guards
	// against matching a small child or tool window). A minimized window is
	// restored before its rectangles are read.
	Locate(titleSubstring string) (*Window, error)
}

// FrameCapturer reads screen pixels for a screen-absolute rectangle.
// Implementation: kbinani/screenshot clamped to the virtual display.
type FrameCapturer interface {
	// Grab captures the rectangle. Returns ErrEmptyRegion when the clamped
	// rectangle has no area, ErrCaptureFailed when the OS primitive fails.
	Grab(r Rect) (image.Image, error)
}

// Recognizer turns an image into text.
// Implementation: Tesseract via gosseract, configured with a language spec
// and a page segmentation mode.
type Recognizer interface {
	Recognize(img image.Image) (string, error)
}

// Sender posts a formatted message to the notification endpoint.
type Sender interface {
	// Send dispatches text. Empty text is a no-op with a nil outcome.
	// The outcome is returned even when err is non-nil so the caller can
	// log the delivery result before aborting.
	Send(text string) (*DeliveryOutcome, error)
}

// ControlChannel owns the pid/stop/status records and the rolling log files
// consumed by the external supervisor.
type ControlChannel interface {
	// Begin clears a stale stop record, writes the pid record, and writes
	// status "running". Pid/status write failures here are fatal: the
	// supervisor depends on these files existing.
	Begin() error

	// Heartbeat rewrites the status record with a fresh timestamp.
	Heartbeat() error

	// StopRequested reports whether a stop record exists on disk.
	StopRequested() bool

	// End writes status "stopped" and removes the pid record. Idempotent;
	// must run on every exit path.
	End()

	// WriteLatest rewrites the single-block latest log, capped to the
	// configured character limit.
	WriteLatest(text string)

	// AppendRecent appends a timestamped line to the rolling activity log.
	AppendRecent(line string)

	// AppendWebhook appends a timestamped line to the rolling delivery log.
	AppendWebhook(line string)
}
