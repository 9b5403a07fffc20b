// Package window resolves the configured crop specification into a final
// screen-absolute capture rectangle.
package window

import (
	"chatrelay/internal/config"
	"chatrelay/internal/domain"
)

// NeedsWindow reports whether the configuration requires locating the target
// window at all. A screen-absolute crop is self-contained.
func NeedsWindow(cfg *config.Config) bool {
	return !(cfg.CropMode == domain.CropScreen && cfg.CropRect != nil)
}

// ResolveCaptureRect turns the configured crop into a screen-absolute
// rectangle.
//
// Screen mode with a crop configured: the crop is the capture rectangle,
// verbatim. Client mode with a crop: the crop is interpreted as offsets
// within the window's client area, clamped so the origin stays inside the
// client rect and the extent stays behind the origin, then translated to
// screen coordinates. No crop: the full client rectangle.
//
// A rectangle that degenerates to zero width or height after clamping yields
// ErrInvalidRegion, which the caller treats as a skipped iteration.
func ResolveCaptureRect(cfg *config.Config, win *domain.Window) (domain.Rect, error) {
	if cfg.CropMode == domain.CropScreen && cfg.CropRect != nil {
		r := *cfg.CropRect
		if r.Empty() {
			return domain.Rect{}, domain.ErrInvalidRegion
		}
		return r, nil
	}

	if win == nil {
		return domain.Rect{}, domain.ErrWindowNotFound
	}
	client := win.Client
	if client.Empty() {
		return domain.Rect{}, domain.ErrInvalidRegion
	}
	if cfg.CropRect == nil {
		return client, nil
	}

	w, h := client.Width(), client.Height()
	r := *cfg.CropRect

	r.Left = clamp(r.Left, 0, w-1)
	r.Top = clamp(r.Top, 0, h-1)
	r.Right = clamp(r.Right, r.Left+1, w)
	r.Bottom = clamp(r.Bottom, r.Top+1, h)

	if r.Empty() {
		return domain.Rect{}, domain.ErrInvalidRegion
	}
	return r.Translate(client.Left, client.Top), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
