package screen

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/asreview/prior/internal/screening"
	"github.com/asreview/prior/pkg/screen/modal"
)

const (
	defaultWidth   = 80
	defaultHeight  = 24
	minDialogWidth = 30
	abstractHeight = 10
	// rows used by everything in the dialog except the abstract
	dialogChromeRows = 14
)

const (
	actionRelevant   = "relevant"
	actionIrrelevant = "irrelevant"
	actionShowMore   = "show_more"
	actionRetry      = "retry"
	actionClose      = "close"
)

var (
	spinnerStyle = lipgloss.NewStyle().Foreground(modal.Primary)
	docTitle     = lipgloss.NewStyle().Bold(true)
	errorText    = lipgloss.NewStyle().Foreground(modal.Error)
	countText    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	doneTitle    = lipgloss.NewStyle().Bold(true).Foreground(modal.Warning)
)

func (m *Model) dialogWidth() int {
	w := min(defaultWidth, m.width-2)
	return max(w, minDialogWidth)
}

// contentWidth matches the modal's inner width
func (m *Model) contentWidth() int {
	return m.dialogWidth() - 4
}

func (m *Model) resize() {
	m.abstract.Width = m.contentWidth()
	m.abstract.Height = min(max(m.height-dialogChromeRows, 3), 20)
	m.renderedDoc = -1
	m.rebuild()
}

// View renders the dialog.
func (m *Model) View() string {
	if m.closed {
		return ""
	}
	return m.dialog.Render(m.width, m.height)
}

// rebuild recreates the modal for the current state, keeping keyboard focus
// on the same element when it still exists.
func (m *Model) rebuild() {
	focus := ""
	if m.dialog != nil {
		focus = m.dialog.FocusedID()
	}

	if m.picker != nil {
		m.dialog = m.picker.modal(m.dialogWidth())
	} else {
		m.refreshAbstract()
		m.dialog = m.screeningModal()
	}

	if focus != "" {
		m.dialog.SetFocus(focus)
	}
}

func (m *Model) screeningModal() *modal.Modal {
	view := m.session.View()

	title := "Prior knowledge"
	if p := m.session.ProjectID(); p != "" {
		title += " · " + p
	}
	variant := modal.VariantDefault
	if view == screening.ViewExhausted {
		variant = modal.VariantWarning
	}

	md := modal.New(title,
		modal.WithWidth(m.dialogWidth()),
		modal.WithVariant(variant),
		modal.WithHints(false),
	)
	md.AddSection(modal.Custom(m.renderBody, nil))
	md.AddSection(modal.Spacer())
	md.AddSection(modal.Buttons(m.buttons(view)...))
	md.AddSection(modal.Spacer())
	md.AddSection(modal.Custom(m.renderStatus, nil))
	return md
}

func (m *Model) buttons(view screening.View) []modal.ButtonDef {
	var btns []modal.ButtonDef
	switch view {
	case screening.ViewExhausted:
		btns = append(btns, modal.Btn(" Show more ", actionShowMore))
	case screening.ViewNoMore:
		btns = append(btns, modal.Btn(" Check again ", actionRetry))
	}
	// decisions stay available in every view; with nothing loaded they
	// report "no document loaded"
	btns = append(btns,
		modal.Btn(" Relevant ", actionRelevant),
		modal.Btn(" Irrelevant ", actionIrrelevant, modal.BtnDanger()),
	)
	if m.onClose != nil {
		btns = append(btns, modal.Btn(" Close ", actionClose))
	}
	return btns
}

func (m *Model) renderBody(width int, _ string) modal.RenderedSection {
	var b strings.Builder

	switch m.session.View() {
	case screening.ViewLoading:
		b.WriteString(m.spinner.View() + " Loading a random document…")
		if err := m.session.LastError(); err != nil && m.session.Phase() == screening.PhaseError {
			b.WriteString("\n\n")
			b.WriteString(modal.MutedText.Render(truncateLine(fmt.Sprintf("fetch failed: %v", err), width)))
			b.WriteString("\n")
			b.WriteString(modal.MutedText.Render("press ctrl+r to retry"))
		}

	case screening.ViewDocument:
		doc := m.session.Document()
		b.WriteString(docTitle.Width(width).Render(doc.Title))
		if doc.Authors != "" {
			b.WriteString("\n")
			b.WriteString(modal.MutedText.Render(truncateLine(doc.Authors, width)))
		}
		b.WriteString("\n")
		b.WriteString(m.abstract.View())

	case screening.ViewExhausted:
		b.WriteString(doneTitle.Render("You may be done"))
		b.WriteString("\n\n")
		b.WriteString(lipgloss.NewStyle().Width(width).Render(fmt.Sprintf(
			"You marked %d documents as irrelevant in a row. "+
				"The prior knowledge you have is probably enough to start screening. "+
				"Choose Show more to keep looking.",
			m.session.Exclusions())))

	case screening.ViewNoMore:
		b.WriteString(doneTitle.Render("No documents left"))
		b.WriteString("\n\n")
		b.WriteString(lipgloss.NewStyle().Width(width).Render(
			"Every document in this project already has a label."))
	}

	return modal.RenderedSection{Content: b.String()}
}

func (m *Model) renderStatus(width int, _ string) modal.RenderedSection {
	lines := []string{countText.Render(fmt.Sprintf("relevant %d · irrelevant %d/%d",
		m.session.Inclusions(), m.session.Exclusions(), m.session.Limit()))}

	if s := m.priorStats; s != nil {
		lines = append(lines, modal.MutedText.Render(fmt.Sprintf(
			"project prior knowledge: %d labelled (%d relevant, %d irrelevant)",
			s.Prior, s.Inclusions, s.Exclusions)))
	}
	if m.notice != "" {
		lines = append(lines, errorText.Render(truncateLine(m.notice, width)))
	}

	keys := []string{help(m.keys.Relevant, m.keys.Irrelevant)}
	switch m.session.View() {
	case screening.ViewExhausted:
		keys = append(keys, help(m.keys.ShowMore))
	case screening.ViewNoMore:
		keys = append(keys, help(m.keys.Retry))
	case screening.ViewLoading:
		if m.session.Phase() == screening.PhaseError {
			keys = append(keys, help(m.keys.Retry))
		}
	}
	keys = append(keys, "tab focus", help(m.keys.Quit))
	lines = append(lines, modal.MutedText.Render(truncateLine(strings.Join(keys, " · "), width)))

	return modal.RenderedSection{Content: strings.Join(lines, "\n")}
}

// refreshAbstract re-renders the abstract into the viewport when the document
// or the width changed.
func (m *Model) refreshAbstract() {
	doc := m.session.Document()
	if doc == nil {
		m.renderedDoc = -1
		return
	}
	if doc.ID == m.renderedDoc {
		return
	}
	m.renderedDoc = doc.ID
	m.abstract.SetContent(m.renderMarkdown(doc.Abstract, m.abstract.Width))
	m.abstract.GotoTop()
}

func (m *Model) renderMarkdown(text string, width int) string {
	if strings.TrimSpace(text) == "" {
		return modal.MutedText.Render("(no abstract)")
	}
	if m.md == nil || m.mdWidth != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			m.log.Warn("markdown renderer", "err", err)
			return lipgloss.NewStyle().Width(width).Render(text)
		}
		m.md, m.mdWidth = r, width
	}
	out, err := m.md.Render(text)
	if err != nil {
		m.log.Warn("render abstract", "err", err)
		return lipgloss.NewStyle().Width(width).Render(text)
	}
	return strings.Trim(out, "\n")
}

func truncateLine(s string, width int) string {
	return ansi.Truncate(s, width, "…")
}
