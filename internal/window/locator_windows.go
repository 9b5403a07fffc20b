//go:build windows

package window

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"chatrelay/internal/domain"
)

var (
	user32              = windows.NewLazySystemDLL("user32.dll")
	procEnumWindows     = user32.NewProc("EnumWindows")
	procGetWindowTextW  = user32.NewProc("GetWindowTextW")
	procIsWindowVisible = user32.NewProc("IsWindowVisible")
	procIsIconic        = user32.NewProc("IsIconic")
	procShowWindow      = user32.NewProc("ShowWindow")
	procGetWindowRect   = user32.NewProc("GetWindowRect")
	procGetClientRect   = user32.NewProc("GetClientRect")
	procClientToScreen  = user32.NewProc("ClientToScreen")
)

const swRestore = 9

type winRect struct {
	Left, Top, Right, Bottom int32
}

type winPoint struct {
	X, Y int32
}

// Win32Locator locates top-level windows via EnumWindows.
type Win32Locator struct{}

// NewLocator returns the platform window locator.
func NewLocator() domain.WindowLocator {
	return &Win32Locator{}
}

// enumResult collects candidates across one EnumWindows pass. The runtime
// never releases compiled callbacks and caps them per process, so enumCB is
// compiled exactly once and exchanges state through this variable instead of
// a per-call closure. Safe without locking: the loop is single-threaded and
// EnumWindows runs the callback synchronously on the calling thread.
var enumResult []candidate

var enumCB = syscall.NewCallback(func(hwnd windows.HWND, _ uintptr) uintptr {
	visible, _, _ := procIsWindowVisible.Call(uintptr(hwnd))
	if visible == 0 {
		return 1
	}
	title := windowText(hwnd)
	if title == "" {
		return 1
	}
	var r winRect
	ret, _, _ := procGetWindowRect.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&r)))
	if ret == 0 {
		return 1
	}
	enumResult = append(enumResult, candidate{
		handle: uintptr(hwnd),
		title:  title,
		outer:  domain.Rect{Left: int(r.Left), Top: int(r.Top), Right: int(r.Right), Bottom: int(r.Bottom)},
	})
	return 1
})

// Locate finds the visible window whose title contains the substring. When
// several match, the one with the largest outer area wins. A minimized
// window is restored before its rectangles are read.
func (l *Win32Locator) Locate(titleSubstring string) (*domain.Window, error) {
	enumResult = enumResult[:0]
	ret, _, callErr := procEnumWindows.Call(enumCB, 0)
	cands := enumResult
	if ret == 0 && len(cands) == 0 {
		return nil, fmt.Errorf("%w: enum failed: %v", domain.ErrWindowNotFound, callErr)
	}

	i := selectWindow(cands, titleSubstring)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", domain.ErrWindowNotFound, titleSubstring)
	}
	best := cands[i]
	hwnd := windows.HWND(best.handle)

	if iconic, _, _ := procIsIconic.Call(uintptr(hwnd)); iconic != 0 {
		procShowWindow.Call(uintptr(hwnd), swRestore)
	}

	// Rectangles are re-read after a possible restore.
	outer, err := outerRect(hwnd)
	if err != nil {
		return nil, err
	}
	client, err := clientRect(hwnd)
	if err != nil {
		return nil, err
	}

	return &domain.Window{
		Handle: best.handle,
		Title:  best.title,
		Outer:  outer,
		Client: client,
	}, nil
}

func windowText(hwnd windows.HWND) string {
	buf := make([]uint16, 512)
	n, _, _ := procGetWindowTextW.Call(uintptr(hwnd),
		uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}

func outerRect(hwnd windows.HWND) (domain.Rect, error) {
	var r winRect
	ret, _, err := procGetWindowRect.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&r)))
	if ret == 0 {
		return domain.Rect{}, fmt.Errorf("%w: GetWindowRect: %v", domain.ErrWindowNotFound, err)
	}
	return domain.Rect{Left: int(r.Left), Top: int(r.Top), Right: int(r.Right), Bottom: int(r.Bottom)}, nil
}

// clientRect returns the client area translated to screen coordinates, the
// same way coordinate calibration tools compute it, so crops line up without
// frame or border offsets.
func clientRect(hwnd windows.HWND) (domain.Rect, error) {
	var r winRect
	ret, _, err := procGetClientRect.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&r)))
	if ret == 0 {
		return domain.Rect{}, fmt.Errorf("%w: GetClientRect: %v", domain.ErrWindowNotFound, err)
	}
	tl := winPoint{X: r.Left, Y: r.Top}
	br := winPoint{X: r.Right, Y: r.Bottom}
	procClientToScreen.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&tl)))
	procClientToScreen.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&br)))
	return domain.Rect{Left: int(tl.X), Top: int(tl.Y), Right: int(br.X), Bottom: int(br.Y)}, nil
}
