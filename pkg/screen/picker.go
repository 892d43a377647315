package screen

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/asreview/prior/internal/models"
	"github.com/asreview/prior/pkg/screen/modal"
)

const pickerListID = "projects"

// picker chooses a project when none is configured
type picker struct {
	input    textinput.Model
	all      []models.Project
	matches  []models.Project
	selected int
	loaded   bool
	err      error
}

func newPicker() *picker {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "filter projects"
	ti.Focus()
	return &picker{input: ti}
}

// projectSource adapts a project slice for fuzzy matching on name and id
type projectSource []models.Project

func (s projectSource) String(i int) string { return s[i].Name + " " + s[i].ID }
func (s projectSource) Len() int            { return len(s) }

func (p *picker) setProjects(projects []models.Project, err error) {
	p.all = projects
	p.err = err
	p.loaded = true
	p.filter()
}

func (p *picker) filter() {
	p.selected = 0
	q := p.input.Value()
	if q == "" {
		p.matches = p.all
		return
	}
	results := fuzzy.FindFrom(q, projectSource(p.all))
	p.matches = make([]models.Project, 0, len(results))
	for _, r := range results {
		p.matches = append(p.matches, p.all[r.Index])
	}
}

func (p *picker) modal(width int) *modal.Modal {
	md := modal.New("Select a project", modal.WithWidth(width))
	md.AddSection(modal.Custom(func(int, string) modal.RenderedSection {
		return modal.RenderedSection{Content: p.input.View()}
	}, nil))
	md.AddSection(modal.Spacer())

	switch {
	case !p.loaded:
		md.AddSection(modal.Text("Loading projects…"))
	case p.err != nil:
		md.AddSection(modal.Text(errorText.Render("could not list projects: " + p.err.Error())))
	case len(p.all) == 0:
		md.AddSection(modal.Text("No projects yet. Create one with 'prior import'."))
	default:
		items := make([]modal.ListItem, len(p.matches))
		for i, proj := range p.matches {
			items[i] = modal.ListItem{
				ID:    proj.ID,
				Label: proj.Name + "  " + modal.MutedText.Render(proj.ID),
				Data:  proj,
			}
		}
		md.AddSection(modal.List(pickerListID, items, &p.selected, modal.WithMaxVisible(8)))
	}
	return md
}

// listKey reports whether a key belongs to the list rather than the filter
func listKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "up", "down", "ctrl+p", "ctrl+n", "enter", "tab", "shift+tab", "esc":
		return true
	}
	return false
}

func (m *Model) handlePickerKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		return m.close()
	}
	if listKey(msg) {
		action, cmd := m.dialog.HandleKey(msg)
		switch action {
		case "":
			return cmd
		case modal.ActionCancel:
			return tea.Batch(cmd, m.close())
		default:
			return tea.Batch(cmd, m.selectProject(action))
		}
	}

	var cmd tea.Cmd
	m.picker.input, cmd = m.picker.input.Update(msg)
	m.picker.filter()
	m.rebuild()
	return cmd
}
