package view

import "errors"

// ErrWindowClosed is returned by Window.Draw when the user closes the window.
var ErrWindowClosed = errors.New("window closed")
