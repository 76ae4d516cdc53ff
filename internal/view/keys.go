package view

// Key is a UI command decoded from keyboard input.
type Key int

const (
	KeyNone Key = iota
	KeyNext
	KeyPrev
	KeyIncrease
	KeyDecrease
	KeyActivate
	KeyQuit
)

// HandleKey applies a key to the focused element. It reports whether the
// key asks the UI to quit.
func (d *Document) HandleKey(k Key) (quit bool) {
	switch k {
	case KeyQuit:
		return true
	case KeyNext:
		d.moveFocus(1)
	case KeyPrev:
		d.moveFocus(-1)
	case KeyIncrease, KeyDecrease:
		if s, ok := d.focusedSlider(); ok {
			if k == KeyIncrease {
				s.Nudge(1)
			} else {
				s.Nudge(-1)
			}
		}
	case KeyActivate:
		el, ok := d.Focused()
		if !ok {
			return false
		}
		if c, ok := el.(*Checkbox); ok {
			c.Toggle()
		}
	}
	return false
}

func (d *Document) moveFocus(dir int) {
	if len(d.elements) == 0 {
		return
	}
	if next := d.nextFocusable(d.focus, dir); next >= 0 {
		d.focus = next
	}
}

func (d *Document) focusedSlider() (*Slider, bool) {
	el, ok := d.Focused()
	if !ok {
		return nil, false
	}
	s, ok := el.(*Slider)
	return s, ok
}
