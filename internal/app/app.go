// Package app runs the plugin UI: one event loop owning the document, fed by
// keyboard input, bridge callbacks and a render ticker.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/eiannone/keyboard"
	"golang.org/x/term"

	"github.com/guidoenr/gainbridge/internal/bridge"
	"github.com/guidoenr/gainbridge/internal/config"
	"github.com/guidoenr/gainbridge/internal/logging"
	"github.com/guidoenr/gainbridge/internal/view"
)

// Config configures the UI runtime.
type Config struct {
	HostURL   string
	Layout    config.Layout
	TargetFPS float64
	Width     int
	// Window draws into an SDL window instead of the terminal.
	Window bool
	Log    *slog.Logger
}

// App ties together the bridge client, the document and the renderers.
type App struct {
	cfg      Config
	doc      *view.Document
	terminal *view.Terminal
	window   *view.Window
	client   *bridge.Client
	wiring   *Wiring
	log      *slog.Logger

	posted chan func()
	done   chan struct{}
	keys   chan view.Key

	width, height int
	status        string
}

const postBuffer = 256

// New builds the document, dials the host and wires bindings and meters.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = 30
	}
	if cfg.Width <= 0 {
		cfg.Width = 80
	}
	if cfg.Log == nil {
		cfg.Log = logging.Get(logging.UI)
	}
	if cfg.Window && !view.SupportsWindow() {
		return nil, errors.New("window output needs a build with -tags sdl")
	}

	a := &App{
		cfg:      cfg,
		terminal: view.NewTerminal(cfg.Width),
		log:      cfg.Log,
		posted:   make(chan func(), postBuffer),
		done:     make(chan struct{}),
		width:    cfg.Width,
	}

	if err := cfg.Layout.Validate(); err != nil {
		a.log.Error("layout problems", "error", err)
	}
	doc, errs := view.NewDocument(cfg.Layout.Title, cfg.Layout.Elements)
	for _, err := range errs {
		a.log.Error("skipping element", "error", err)
	}
	a.doc = doc

	client, err := bridge.Dial(ctx, cfg.HostURL, bridge.Options{
		Dispatch: a.Post,
		Log:      logging.Get(logging.BRIDGE),
	})
	if err != nil {
		return nil, err
	}
	a.client = client
	a.wiring = Bootstrap(doc, cfg.Layout, ClientBackend{client}, a.Post, a.log)
	a.status = "connected to " + cfg.HostURL

	if cfg.Window {
		w, err := view.OpenWindow(doc, cfg.Width*8)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("open window: %w", err)
		}
		a.window = w
	}
	return a, nil
}

// Document exposes the element tree.
func (a *App) Document() *view.Document { return a.doc }

// Post schedules fn on the UI loop. It blocks while the queue is full and
// drops fn once the loop has stopped.
func (a *App) Post(fn func()) {
	select {
	case a.posted <- fn:
	case <-a.done:
	}
}

// Run drives the UI until ctx is cancelled, the user quits or the bridge
// drops.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer close(a.done)

	bridgeErr := make(chan error, 1)
	go func() {
		bridgeErr <- a.client.Run(ctx)
	}()

	frameDuration := time.Duration(float64(time.Second) / a.cfg.TargetFPS)
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	if a.window == nil {
		enterAltScreen()
		clearScreen()
		hideCursor()
		defer func() {
			showCursor()
			exitAltScreen()
		}()
		a.startInputListener(ctx)
		a.ensureDimensions()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-bridgeErr:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("bridge: %w", err)
		case fn := <-a.posted:
			fn()
		case k, ok := <-a.keys:
			if !ok {
				a.keys = nil
				continue
			}
			if a.doc.HandleKey(k) {
				return nil
			}
		case <-ticker.C:
			quit, err := a.draw()
			if err != nil || quit {
				return err
			}
		}
	}
}

// Close releases the window, the bindings and the connection.
func (a *App) Close() error {
	if a.wiring != nil {
		a.wiring.Close()
	}
	var errs []error
	if a.window != nil {
		errs = append(errs, a.window.Close())
	}
	if a.client != nil {
		errs = append(errs, a.client.Close())
	}
	return errors.Join(errs...)
}

func (a *App) draw() (quit bool, err error) {
	status := a.status + " | " + keyHelp
	if a.window != nil {
		keys, err := a.window.Draw(a.doc, a.status)
		if errors.Is(err, view.ErrWindowClosed) {
			return true, nil
		}
		if err != nil {
			return true, err
		}
		for _, k := range keys {
			if a.doc.HandleKey(k) {
				return true, nil
			}
		}
		return false, nil
	}

	a.ensureDimensions()
	moveCursorHome()
	frame := a.terminal.Render(a.doc, status)
	// clear to end of line so shrinking values leave no residue
	fmt.Print(strings.ReplaceAll(frame, "\n", "\x1b[K\n") + "\x1b[K\x1b[J")
	return false, nil
}

const keyHelp = "tab/↑↓ focus  ←→ adjust  space toggle  q quit"

func (a *App) ensureDimensions() {
	fd := int(os.Stdout.Fd())
	w, h, err := term.GetSize(fd)
	if err != nil || w <= 0 || h <= 0 {
		return
	}
	if w == a.width && h == a.height {
		return
	}
	a.width, a.height = w, h
	a.terminal.Resize(w)
	clearScreen()
}

func (a *App) startInputListener(ctx context.Context) {
	if err := keyboard.Open(); err != nil {
		a.log.Warn("keyboard input disabled", "error", err)
		return
	}

	keys := make(chan view.Key, 16)
	a.keys = keys

	closeOnce := &sync.Once{}
	go func() {
		<-ctx.Done()
		closeOnce.Do(func() {
			_ = keyboard.Close()
		})
	}()

	go func() {
		defer close(keys)
		defer closeOnce.Do(func() {
			_ = keyboard.Close()
		})
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				return
			}
			k := keyFor(char, key)
			if k == view.KeyNone {
				continue
			}
			select {
			case keys <- k:
			case <-ctx.Done():
				return
			}
			if k == view.KeyQuit {
				return
			}
		}
	}()
}

func keyFor(char rune, key keyboard.Key) view.Key {
	switch key {
	case keyboard.KeyEsc, keyboard.KeyCtrlC:
		return view.KeyQuit
	case keyboard.KeyTab, keyboard.KeyArrowDown:
		return view.KeyNext
	case keyboard.KeyArrowUp:
		return view.KeyPrev
	case keyboard.KeyArrowRight:
		return view.KeyIncrease
	case keyboard.KeyArrowLeft:
		return view.KeyDecrease
	case keyboard.KeySpace, keyboard.KeyEnter:
		return view.KeyActivate
	}
	switch char {
	case 'q', 'Q':
		return view.KeyQuit
	case 'j':
		return view.KeyNext
	case 'k':
		return view.KeyPrev
	case 'l', '+':
		return view.KeyIncrease
	case 'h', '-':
		return view.KeyDecrease
	}
	return view.KeyNone
}

func clearScreen() {
	fmt.Print("\x1b[2J")
	moveCursorHome()
}

func moveCursorHome() {
	fmt.Print("\x1b[H")
}

func hideCursor() {
	fmt.Print("\x1b[?25l")
}

func showCursor() {
	fmt.Print("\x1b[?25h")
}

func enterAltScreen() {
	fmt.Print("\x1b[?1049h")
}

func exitAltScreen() {
	fmt.Print("\x1b[?1049l\x1b[0m")
}
