package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	accentColor = lipgloss.Color("#ff4500")
	mutedColor  = lipgloss.Color("#888888")
	trackColor  = lipgloss.Color("#444444")
	textColor   = lipgloss.Color("#FFFFFF")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			MarginBottom(1)

	labelStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	focusStyle   = lipgloss.NewStyle().Bold(true).Foreground(textColor)
	valueStyle   = lipgloss.NewStyle().Bold(true).Foreground(textColor)
	trackStyle   = lipgloss.NewStyle().Foreground(trackColor)
	statusStyle  = lipgloss.NewStyle().Foreground(mutedColor)
	defaultLevel = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff00"))
)

const (
	labelWidth   = 12
	minTrack     = 10
	focusMarker  = "▸ "
	noFocusSpace = "  "
)

// Terminal draws a document as styled text rows.
type Terminal struct {
	width int
}

// NewTerminal returns a renderer for the given column count.
func NewTerminal(width int) *Terminal {
	t := &Terminal{}
	t.Resize(width)
	return t
}

// Resize updates the column count.
func (t *Terminal) Resize(width int) {
	if width <= 0 {
		width = 80
	}
	t.width = width
}

func (t *Terminal) trackWidth() int {
	w := t.width - labelWidth - len(focusMarker) - 14
	if w < minTrack {
		w = minTrack
	}
	return w
}

// Render produces the full screen: title, one row per element, status line.
func (t *Terminal) Render(d *Document, status string) string {
	focused, _ := d.Focused()

	rows := []string{titleStyle.Render(d.Title)}
	for _, el := range d.Elements() {
		marker := noFocusSpace
		label := labelStyle
		if el == focused {
			marker = focusMarker
			label = focusStyle
		}
		name := el.Label()
		if name == "" {
			name = el.ID()
		}
		head := marker + label.Width(labelWidth).Render(truncate(name, labelWidth))
		rows = append(rows, head+t.widget(el))
	}
	rows = append(rows, "", statusStyle.Render(truncate(status, t.width)))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (t *Terminal) widget(el Element) string {
	switch e := el.(type) {
	case *Slider:
		return t.slider(e)
	case *Checkbox:
		if e.Checked() {
			return valueStyle.Render("[x]")
		}
		return trackStyle.Render("[ ]")
	case *Bar:
		return t.bar(e)
	case *Text:
		return valueStyle.Render(e.Text())
	}
	return ""
}

func (t *Terminal) slider(s *Slider) string {
	width := t.trackWidth()
	pos := int(s.Fraction()*float64(width-1) + 0.5)
	pos = max(0, min(pos, width-1))

	track := trackStyle.Render(strings.Repeat("─", pos)) +
		focusStyle.Render("●") +
		trackStyle.Render(strings.Repeat("─", width-1-pos))
	return track + " " + valueStyle.Render(fmt.Sprintf("%.2f", s.Value()))
}

func (t *Terminal) bar(b *Bar) string {
	width := t.trackWidth()
	filled := int(b.Height() / 100 * float64(width))
	filled = max(0, min(filled, width))

	style := defaultLevel
	if b.Color() != "" {
		style = lipgloss.NewStyle().Foreground(lipgloss.Color(b.Color()))
	}
	return style.Render(strings.Repeat("█", filled)) +
		trackStyle.Render(strings.Repeat("░", width-filled)) +
		" " + labelStyle.Render(fmt.Sprintf("%3.0f%%", b.Height()))
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	return string(r[:width])
}
