package modal

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
)

// Section is one block of modal content.
type Section interface {
	// Render draws the section at contentWidth. focusID is the id that
	// currently holds focus.
	Render(contentWidth int, focusID string) RenderedSection
	// Update handles a message while focusID holds focus and may return an
	// action id.
	Update(msg tea.Msg, focusID string) (string, tea.Cmd)
}

// RenderedSection is a section's output plus the focusable ids it drew, in
// tab order.
type RenderedSection struct {
	Content    string
	Focusables []string
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(s, width, "…")
}

// --- Text ---

type textSection struct{ text string }

// Text creates a static text section wrapped to the content width.
func Text(s string) Section { return textSection{text: s} }

func (t textSection) Render(contentWidth int, _ string) RenderedSection {
	if contentWidth <= 0 {
		return RenderedSection{Content: t.text}
	}
	return RenderedSection{Content: ansi.Wrap(t.text, contentWidth, " -")}
}

func (textSection) Update(tea.Msg, string) (string, tea.Cmd) { return "", nil }

// --- Spacer ---

type spacerSection struct{}

// Spacer creates a blank line.
func Spacer() Section { return spacerSection{} }

func (spacerSection) Render(int, string) RenderedSection {
	return RenderedSection{Content: " "}
}

func (spacerSection) Update(tea.Msg, string) (string, tea.Cmd) { return "", nil }

// --- Buttons ---

// ButtonDef describes one button.
type ButtonDef struct {
	Label  string
	ID     string
	Danger bool
}

// ButtonOption configures a ButtonDef.
type ButtonOption func(*ButtonDef)

// BtnDanger renders the button in the danger color when focused.
func BtnDanger() ButtonOption {
	return func(b *ButtonDef) { b.Danger = true }
}

// Btn creates a button that returns id when activated.
func Btn(label, id string, opts ...ButtonOption) ButtonDef {
	b := ButtonDef{Label: label, ID: id}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

type buttonsSection struct{ buttons []ButtonDef }

// Buttons creates a horizontal row of buttons. Each button is focusable.
func Buttons(btns ...ButtonDef) Section { return buttonsSection{buttons: btns} }

func (b buttonsSection) Render(contentWidth int, focusID string) RenderedSection {
	var rendered []string
	ids := make([]string, 0, len(b.buttons))
	for _, btn := range b.buttons {
		style := Button
		if btn.ID == focusID {
			style = ButtonFocused
			if btn.Danger {
				style = ButtonDangerFocused
			}
		}
		rendered = append(rendered, style.Render(btn.Label))
		ids = append(ids, btn.ID)
	}
	row := strings.Join(rendered, "  ")
	if contentWidth > 0 && ansi.StringWidth(row) > contentWidth {
		row = truncate(row, contentWidth)
	}
	return RenderedSection{Content: row, Focusables: ids}
}

func (b buttonsSection) Update(msg tea.Msg, focusID string) (string, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok || key.String() != "enter" {
		return "", nil
	}
	for _, btn := range b.buttons {
		if btn.ID == focusID {
			return btn.ID, nil
		}
	}
	return "", nil
}

// --- When ---

type whenSection struct {
	cond  func() bool
	inner Section
}

// When renders inner only while cond returns true. A hidden section
// contributes no focusables and ignores input.
func When(cond func() bool, inner Section) Section {
	return whenSection{cond: cond, inner: inner}
}

func (w whenSection) Render(contentWidth int, focusID string) RenderedSection {
	if !w.cond() {
		return RenderedSection{}
	}
	return w.inner.Render(contentWidth, focusID)
}

func (w whenSection) Update(msg tea.Msg, focusID string) (string, tea.Cmd) {
	if !w.cond() {
		return "", nil
	}
	return w.inner.Update(msg, focusID)
}

// --- Custom ---

type customSection struct {
	render func(contentWidth int, focusID string) RenderedSection
	update func(msg tea.Msg, focusID string) (string, tea.Cmd)
}

// Custom builds a section from functions. update may be nil.
func Custom(
	render func(contentWidth int, focusID string) RenderedSection,
	update func(msg tea.Msg, focusID string) (string, tea.Cmd),
) Section {
	return customSection{render: render, update: update}
}

func (c customSection) Render(contentWidth int, focusID string) RenderedSection {
	return c.render(contentWidth, focusID)
}

func (c customSection) Update(msg tea.Msg, focusID string) (string, tea.Cmd) {
	if c.update == nil {
		return "", nil
	}
	return c.update(msg, focusID)
}
