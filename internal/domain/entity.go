// Package domain contains core entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

// CropMode selects the coordinate space a configured crop rectangle is
// interpreted in.
type CropMode string

const (
	// CropClient interprets the crop rectangle as offsets within the target
	// window's client area.
	CropClient CropMode = "client"

	// CropScreen interprets the crop rectangle as screen-absolute coordinates,
	// independent of any window.
	CropScreen CropMode = "screen"
)

// Rect is a screen rectangle as (left, top, right, bottom).
// Right and bottom are exclusive.
type Rect struct {
	Left   int
	Top    int
	Right  int
	Bottom int
}

// Width returns the rectangle width.
func (r Rect) Width() int { return r.Right - r.Left }

// Height returns the rectangle height.
func (r Rect) Height() int { return r.Bottom - r.Top }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// Translate shifts the rectangle by (dx, dy).
func (r Rect) Translate(dx, dy int) Rect {
	return Rect{r.Left + dx, r.Top + dy, r.Right + dx, r.Bottom + dy}
}

// Intersect clamps the rectangle to the bounds of o.
func (r Rect) Intersect(o Rect) Rect {
	out := r
	if out.Left < o.Left {
		out.Left = o.Left
	}
	if out.Top < o.Top {
		out.Top = o.Top
	}
	if out.Right > o.Right {
		out.Right = o.Right
	}
	if out.Bottom > o.Bottom {
		out.Bottom = o.Bottom
	}
	return out
}

// Window describes a located top-level window.
// Outer and Client are screen-absolute.
type Window struct {
	Handle uintptr
	Title  string
	Outer  Rect
	Client Rect
}

// DeliveryOutcome captures the result of a single webhook dispatch.
type DeliveryOutcome struct {
	StatusCode int
	Body       string // response body, truncated for logging
	Chars      int    // payload length actually sent, in runes
	Truncated  bool
}

// LoopStatus is the lifecycle state written to the status record.
type LoopStatus string

const (
	StatusRunning LoopStatus = "running"
	StatusStopped LoopStatus = "stopped"
)
