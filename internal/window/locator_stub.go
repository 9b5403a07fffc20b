//go:build !windows

package window

import (
	"fmt"

	"chatrelay/internal/domain"
)

// stubLocator stands in on platforms without window enumeration support.
// Screen-absolute crop mode still works there; client-relative mode fails
// each iteration with ErrWindowNotFound and the loop keeps retrying.
type stubLocator struct{}

// NewLocator returns the platform window locator.
func NewLocator() domain.WindowLocator {
	return &stubLocator{}
}

func (l *stubLocator) Locate(titleSubstring string) (*domain.Window, error) {
	return nil, fmt.Errorf("%w: window enumeration unsupported on this platform", domain.ErrWindowNotFound)
}
