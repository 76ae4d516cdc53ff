//go:build !sdl

package view

import "errors"

// Window is unavailable without the sdl build tag.
type Window struct{}

func OpenWindow(doc *Document, width int) (*Window, error) {
	return nil, errors.New("SDL window not enabled; rebuild with -tags sdl")
}

func (w *Window) Draw(doc *Document, status string) ([]Key, error) {
	return nil, ErrWindowClosed
}

func (w *Window) Close() error { return nil }

func SupportsWindow() bool { return false }
