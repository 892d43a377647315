package modal

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ActionCancel is returned by HandleKey when the user presses Esc.
const ActionCancel = "cancel"

const (
	defaultWidth = 60
	minWidth     = 20
	// border (2) + horizontal padding (2)
	chromeWidth = 4
)

// Variant selects the border color of a modal.
type Variant int

const (
	VariantDefault Variant = iota
	VariantDanger
	VariantWarning
	VariantInfo
)

// Option configures a Modal.
type Option func(*Modal)

// WithWidth sets the outer width of the modal.
func WithWidth(w int) Option {
	return func(m *Modal) {
		if w >= minWidth {
			m.width = w
		}
	}
}

// WithVariant sets the visual variant.
func WithVariant(v Variant) Option {
	return func(m *Modal) { m.variant = v }
}

// WithHints toggles the keyboard hint line under the sections.
func WithHints(show bool) Option {
	return func(m *Modal) { m.showHints = show }
}

// WithPrimaryAction sets the action returned when Enter is pressed and the
// focused element does not produce one itself.
func WithPrimaryAction(actionID string) Option {
	return func(m *Modal) { m.primaryAction = actionID }
}

// Modal is a bordered dialog assembled from sections.
type Modal struct {
	title         string
	width         int
	variant       Variant
	showHints     bool
	primaryAction string

	sections []Section

	// focusIDs is rebuilt on every render; focusIdx indexes into it.
	focusIDs []string
	focusIdx int
	measured bool
}

// New creates a modal with the given title.
func New(title string, opts ...Option) *Modal {
	m := &Modal{
		title:     title,
		width:     defaultWidth,
		showHints: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddSection appends a section and returns the modal for chaining.
func (m *Modal) AddSection(s Section) *Modal {
	m.sections = append(m.sections, s)
	m.measured = false
	return m
}

// FocusedID returns the id of the focused element, or "" when nothing on the
// modal can take focus.
func (m *Modal) FocusedID() string {
	m.ensureMeasured()
	if len(m.focusIDs) == 0 {
		return ""
	}
	return m.focusIDs[m.focusIdx]
}

// SetFocus moves focus to id if it is currently rendered.
func (m *Modal) SetFocus(id string) bool {
	m.ensureMeasured()
	for i, fid := range m.focusIDs {
		if fid == id {
			m.focusIdx = i
			return true
		}
	}
	return false
}

// Render draws the modal centered in a screenW x screenH area.
func (m *Modal) Render(screenW, screenH int) string {
	width := m.width
	if screenW > 0 && width > screenW {
		width = max(minWidth, screenW)
	}
	body := m.renderBody(width - chromeWidth)

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor(m.variant)).
		Padding(0, 1).
		Width(width - 2).
		Render(body)

	if screenW <= 0 || screenH <= 0 {
		return box
	}
	return lipgloss.Place(screenW, screenH, lipgloss.Center, lipgloss.Center, box)
}

func (m *Modal) renderBody(contentWidth int) string {
	focused := m.currentFocus()

	var parts []string
	if m.title != "" {
		parts = append(parts, ModalTitle.Render(truncate(m.title, contentWidth)), "")
	}

	var ids []string
	for _, s := range m.sections {
		r := s.Render(contentWidth, focused)
		ids = append(ids, r.Focusables...)
		if r.Content == "" && len(r.Focusables) == 0 {
			continue
		}
		parts = append(parts, r.Content)
	}
	m.setFocusables(ids, focused)

	if m.showHints {
		parts = append(parts, "", MutedText.Render(truncate(m.hints(), contentWidth)))
	}
	return strings.Join(parts, "\n")
}

func (m *Modal) hints() string {
	if len(m.focusIDs) > 1 {
		return "tab focus · enter select · esc close"
	}
	return "enter select · esc close"
}

// setFocusables replaces the focus list while keeping focus on the same id
// when it survived the render.
func (m *Modal) setFocusables(ids []string, keep string) {
	m.focusIDs = ids
	m.measured = true
	m.focusIdx = 0
	for i, id := range ids {
		if id == keep {
			m.focusIdx = i
			return
		}
	}
}

func (m *Modal) currentFocus() string {
	if m.focusIdx >= 0 && m.focusIdx < len(m.focusIDs) {
		return m.focusIDs[m.focusIdx]
	}
	return ""
}

// ensureMeasured runs a render pass so focus state exists before the first
// View call.
func (m *Modal) ensureMeasured() {
	if !m.measured {
		m.renderBody(m.width - chromeWidth)
	}
}

// HandleKey processes a key press. It returns a non-empty action id when the
// key activated something.
func (m *Modal) HandleKey(msg tea.KeyMsg) (string, tea.Cmd) {
	m.ensureMeasured()

	switch msg.String() {
	case "tab":
		m.cycleFocus(1)
		return "", nil
	case "shift+tab":
		m.cycleFocus(-1)
		return "", nil
	case "esc":
		return ActionCancel, nil
	}

	focused := m.currentFocus()
	var cmds []tea.Cmd
	for _, s := range m.sections {
		action, cmd := s.Update(msg, focused)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
		if action != "" {
			return action, tea.Batch(cmds...)
		}
	}

	if msg.String() == "enter" && m.primaryAction != "" {
		return m.primaryAction, tea.Batch(cmds...)
	}
	return "", tea.Batch(cmds...)
}

func (m *Modal) cycleFocus(delta int) {
	n := len(m.focusIDs)
	if n == 0 {
		return
	}
	m.focusIdx = ((m.focusIdx+delta)%n + n) % n
}
