package modal

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// ListItem is one row of a list section.
type ListItem struct {
	ID    string
	Label string
	Data  any
}

// ListOption configures a List section.
type ListOption func(*listSection)

type listSection struct {
	id           string
	items        []ListItem
	selectedIdx  *int
	maxVisible   int
	scrollOffset int
}

// List creates a list section. The list is a single focusable; up/down move
// the selection and enter returns the selected item's ID as the action.
// selectedIdx is owned by the caller and may be nil for a read-only list.
func List(id string, items []ListItem, selectedIdx *int, opts ...ListOption) Section {
	s := &listSection{
		id:          id,
		items:       items,
		selectedIdx: selectedIdx,
		maxVisible:  5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithMaxVisible sets the maximum number of visible rows.
func WithMaxVisible(n int) ListOption {
	return func(s *listSection) {
		if n > 0 {
			s.maxVisible = n
		}
	}
}

func (s *listSection) selected() int {
	if s.selectedIdx == nil {
		return 0
	}
	return *s.selectedIdx
}

func (s *listSection) Render(contentWidth int, focusID string) RenderedSection {
	if len(s.items) == 0 {
		return RenderedSection{Content: MutedText.Render("(no items)")}
	}

	visible := min(s.maxVisible, len(s.items))
	sel := s.selected()

	// keep the selection in view
	if sel < s.scrollOffset {
		s.scrollOffset = sel
	} else if sel >= s.scrollOffset+visible {
		s.scrollOffset = sel - visible + 1
	}
	s.scrollOffset = clamp(s.scrollOffset, 0, max(0, len(s.items)-visible))

	focused := focusID == s.id
	labelWidth := contentWidth - 2

	var lines []string
	if s.scrollOffset > 0 {
		lines = append(lines, MutedText.Render("↑ more above"))
	}
	for i := s.scrollOffset; i < s.scrollOffset+visible && i < len(s.items); i++ {
		style := ListItemNormal
		cursor := "  "
		if s.selectedIdx != nil && sel == i {
			cursor = ListCursor.Render("> ")
			style = ListItemSelected
			if focused {
				style = ListItemFocused
			}
		}
		lines = append(lines, cursor+style.Render(truncate(s.items[i].Label, labelWidth)))
	}
	if s.scrollOffset+visible < len(s.items) {
		lines = append(lines, MutedText.Render("↓ more below"))
	}

	return RenderedSection{
		Content:    strings.Join(lines, "\n"),
		Focusables: []string{s.id},
	}
}

func (s *listSection) Update(msg tea.Msg, focusID string) (string, tea.Cmd) {
	if focusID != s.id || s.selectedIdx == nil || len(s.items) == 0 {
		return "", nil
	}
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return "", nil
	}

	switch key.String() {
	case "up", "ctrl+p":
		if *s.selectedIdx > 0 {
			*s.selectedIdx--
		}
	case "down", "ctrl+n":
		if *s.selectedIdx < len(s.items)-1 {
			*s.selectedIdx++
		}
	case "home":
		*s.selectedIdx = 0
	case "end":
		*s.selectedIdx = len(s.items) - 1
	case "enter":
		if i := *s.selectedIdx; i >= 0 && i < len(s.items) {
			return s.items[i].ID, nil
		}
	}
	return "", nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
