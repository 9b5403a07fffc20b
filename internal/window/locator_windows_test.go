//go:build windows

package window

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chatrelay/internal/domain"
)

// The loop calls Locate once per poll for the life of the process. The
// runtime caps compiled callbacks at 2000 per process, so this would panic
// partway through if Locate compiled a fresh callback per call.
func TestLocate_SurvivesThousandsOfCalls(t *testing.T) {
	l := &Win32Locator{}

	for i := 0; i < 2500; i++ {
		_, err := l.Locate("no window has this title 5bd1c0a7")
		assert.ErrorIs(t, err, domain.ErrWindowNotFound)
	}
}
