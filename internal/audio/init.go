// Package audio connects the host's processor to real or synthetic audio.
package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	startPortAudio = portaudio.Initialize
	stopPortAudio  = portaudio.Terminate

	sessionMu sync.Mutex
	sessions  int
)

// Initialize opens a PortAudio session. The library starts with the first
// session and stops when the last one is released with Terminate, so the
// device listing and capture may each hold their own.
func Initialize() error {
	sessionMu.Lock()
	defer sessionMu.Unlock()
	if sessions == 0 {
		if err := startPortAudio(); err != nil {
			return fmt.Errorf("portaudio: %w", err)
		}
	}
	sessions++
	return nil
}

// Terminate releases a session opened by a successful Initialize.
func Terminate() {
	sessionMu.Lock()
	defer sessionMu.Unlock()
	if sessions == 0 {
		return
	}
	sessions--
	if sessions == 0 {
		_ = stopPortAudio()
	}
}
