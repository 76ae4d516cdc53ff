//go:build sdl

package view

import "github.com/veandco/go-sdl2/sdl"

const (
	rowHeight  = 40
	rowPadding = 10
	trackLeft  = 140
)

// Window draws a document into an SDL window. Each element is one row: a
// label swatch on the left and its widget on the right.
type Window struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	title    string
	width    int32
	height   int32
}

// OpenWindow creates a window sized for doc.
func OpenWindow(doc *Document, width int) (*Window, error) {
	if err := sdl.InitSubSystem(sdl.INIT_VIDEO); err != nil {
		return nil, err
	}
	if width <= 0 {
		width = 480
	}
	height := int32(len(doc.Elements())*rowHeight + 2*rowPadding)

	window, err := sdl.CreateWindow(
		doc.Title,
		sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		int32(width), height,
		sdl.WINDOW_SHOWN,
	)
	if err != nil {
		sdl.QuitSubSystem(sdl.INIT_VIDEO)
		return nil, err
	}
	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		window.Destroy()
		sdl.QuitSubSystem(sdl.INIT_VIDEO)
		return nil, err
	}
	return &Window{window: window, renderer: renderer, title: doc.Title, width: int32(width), height: height}, nil
}

// Draw renders doc and polls window events. Key presses are mapped onto
// document keys and returned; closing the window returns ErrWindowClosed.
func (w *Window) Draw(doc *Document, status string) ([]Key, error) {
	if status != "" && status != w.title {
		w.window.SetTitle(status)
		w.title = status
	}

	r := w.renderer
	_ = r.SetDrawColor(24, 24, 24, 255)
	if err := r.Clear(); err != nil {
		return nil, err
	}

	focused, _ := doc.Focused()
	trackWidth := w.width - trackLeft - rowPadding
	for i, el := range doc.Elements() {
		y := int32(rowPadding + i*rowHeight)
		if el == focused {
			_ = r.SetDrawColor(60, 60, 60, 255)
			_ = r.FillRect(&sdl.Rect{X: 0, Y: y, W: w.width, H: rowHeight})
		}
		w.widget(el, y, trackWidth)
	}
	r.Present()

	var keys []Key
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			return keys, ErrWindowClosed
		case *sdl.KeyboardEvent:
			if e.Type != sdl.KEYDOWN {
				continue
			}
			if k := sdlKey(e.Keysym); k != KeyNone {
				keys = append(keys, k)
			}
		}
	}
	return keys, nil
}

func (w *Window) widget(el Element, y, trackWidth int32) {
	r := w.renderer
	track := sdl.Rect{X: trackLeft, Y: y + 12, W: trackWidth, H: rowHeight - 24}

	switch e := el.(type) {
	case *Slider:
		_ = r.SetDrawColor(68, 68, 68, 255)
		_ = r.FillRect(&track)
		fill := track
		fill.W = int32(e.Fraction() * float64(trackWidth))
		_ = r.SetDrawColor(255, 69, 0, 255)
		_ = r.FillRect(&fill)
	case *Checkbox:
		box := sdl.Rect{X: trackLeft, Y: y + 8, W: rowHeight - 16, H: rowHeight - 16}
		_ = r.SetDrawColor(136, 136, 136, 255)
		_ = r.DrawRect(&box)
		if e.Checked() {
			inner := sdl.Rect{X: box.X + 4, Y: box.Y + 4, W: box.W - 8, H: box.H - 8}
			_ = r.SetDrawColor(255, 255, 255, 255)
			_ = r.FillRect(&inner)
		}
	case *Bar:
		_ = r.SetDrawColor(40, 40, 40, 255)
		_ = r.FillRect(&track)
		c, ok := ParseHex(e.Color())
		if !ok {
			c = RGB{0, 255, 0}
		}
		fill := track
		fill.W = int32(e.Height() / 100 * float64(trackWidth))
		_ = r.SetDrawColor(c.R, c.G, c.B, 255)
		_ = r.FillRect(&fill)
	}
}

func sdlKey(k sdl.Keysym) Key {
	switch k.Sym {
	case sdl.K_TAB:
		if k.Mod&uint16(sdl.KMOD_SHIFT) != 0 {
			return KeyPrev
		}
		return KeyNext
	case sdl.K_DOWN:
		return KeyNext
	case sdl.K_UP:
		return KeyPrev
	case sdl.K_RIGHT, sdl.K_l:
		return KeyIncrease
	case sdl.K_LEFT, sdl.K_h:
		return KeyDecrease
	case sdl.K_SPACE, sdl.K_RETURN:
		return KeyActivate
	case sdl.K_ESCAPE, sdl.K_q:
		return KeyQuit
	}
	return KeyNone
}

// Close releases the window.
func (w *Window) Close() error {
	if w.renderer != nil {
		w.renderer.Destroy()
		w.renderer = nil
	}
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.QuitSubSystem(sdl.INIT_VIDEO)
	return nil
}

// SupportsWindow reports whether the binary was built with SDL.
func SupportsWindow() bool { return true }
