//go:build !tinygo && !cgo

package hal

import "errors"

// ErrWindowClosed is returned by RunWindow when the user closes the window.
var ErrWindowClosed = errors.New("window closed")

func RunWindow(_ HAL, _ func() error) error {
	return errors.New("window mode requires cgo (build/run with CGO_ENABLED=1)")
}
