// Package capture reads screen pixels for a screen-absolute rectangle.
package capture

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"

	"chatrelay/internal/domain"
)

// Grabber captures screen regions clamped to the virtual display.
type Grabber struct {
	// displayBounds overrides the detected virtual display, for tests.
	displayBounds *domain.Rect
}

// NewGrabber creates a screen grabber.
func NewGrabber() *Grabber {
	return &Grabber{}
}

// NewGrabberWithBounds creates a grabber with fixed display bounds (for testing).
func NewGrabberWithBounds(bounds domain.Rect) *Grabber {
	return &Grabber{displayBounds: &bounds}
}

// Grab captures the rectangle, clamped to the virtual display's bounding
// box. Returns ErrEmptyRegion when nothing remains after clamping and
// ErrCaptureFailed when the OS screen-read primitive fails; both are
// retried by the loop on the next poll.
func (g *Grabber) Grab(r domain.Rect) (image.Image, error) {
	clamped, err := g.Clamp(r)
	if err != nil {
		return nil, err
	}

	img, err := screenshot.CaptureRect(image.Rect(clamped.Left, clamped.Top, clamped.Right, clamped.Bottom))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCaptureFailed, err)
	}
	return img, nil
}

// Clamp restricts r to the virtual display bounds.
func (g *Grabber) Clamp(r domain.Rect) (domain.Rect, error) {
	bounds := g.virtualBounds()
	clamped := r.Intersect(bounds)
	if clamped.Empty() {
		return domain.Rect{}, fmt.Errorf("%w: %+v outside display %+v", domain.ErrEmptyRegion, r, bounds)
	}
	return clamped, nil
}

// virtualBounds returns the union of all active display rectangles.
func (g *Grabber) virtualBounds() domain.Rect {
	if g.displayBounds != nil {
		return *g.displayBounds
	}

	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return domain.Rect{}
	}
	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	return domain.Rect{Left: union.Min.X, Top: union.Min.Y, Right: union.Max.X, Bottom: union.Max.Y}
}

// Ensure Grabber implements domain.FrameCapturer.
var _ domain.FrameCapturer = (*Grabber)(nil)
