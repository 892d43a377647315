// Package screen is the prior-knowledge screening dialog. It shows one
// unreviewed document at a time, records relevant/irrelevant decisions, and
// switches to a "you may be done" view once enough irrelevant decisions have
// piled up since the last reset.
package screen

import (
	"context"
	"errors"
	"log/slog"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/asreview/prior/internal/models"
	"github.com/asreview/prior/internal/screening"
	"github.com/asreview/prior/pkg/screen/modal"
)

// Fetcher returns random unreviewed documents for a project.
type Fetcher interface {
	PriorRandom(ctx context.Context, projectID string) ([]models.Document, error)
}

// Labeler receives decisions. Both api.Client and outbox.Dispatcher satisfy it.
type Labeler interface {
	IncludeItem(ctx context.Context, projectID string, docID int64) error
	ExcludeItem(ctx context.Context, projectID string, docID int64) error
}

// StatsUpdater refreshes project-wide prior-knowledge totals.
type StatsUpdater interface {
	PriorStats(ctx context.Context, projectID string) (models.PriorStats, error)
}

// ProjectLister lists projects for the picker.
type ProjectLister interface {
	Projects(ctx context.Context) ([]models.Project, error)
}

// Option configures a Model.
type Option func(*Model)

// WithStats refreshes project totals after each decision.
func WithStats(s StatsUpdater) Option {
	return func(m *Model) { m.stats = s }
}

// WithProjects enables the project picker when no project is set.
func WithProjects(p ProjectLister) Option {
	return func(m *Model) { m.projects = p }
}

// WithQueue sends decisions to a local queue instead of the labeler given to
// New. The write happens before the key press returns, so closing the dialog
// right after a decision cannot drop it. Project totals refresh on
// DeliveredMsg rather than after each write.
func WithQueue(q Labeler) Option {
	return func(m *Model) {
		if q != nil {
			m.labeler = q
			m.queued = true
		}
	}
}

// WithOnClose renders a Close button that calls fn before quitting.
func WithOnClose(fn func()) Option {
	return func(m *Model) { m.onClose = fn }
}

// WithLogger sets the logger. The TUI owns the terminal, so this should not
// write to stdout or stderr.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.log = l
		}
	}
}

// WithExclusionLimit overrides the number of irrelevant decisions that
// exhausts a session.
func WithExclusionLimit(n int) Option {
	return func(m *Model) { m.limit = n }
}

// Model is the Bubble Tea model for the screening dialog.
type Model struct {
	session  *screening.Session
	fetcher  Fetcher
	labeler  Labeler
	queued   bool
	stats    StatsUpdater
	projects ProjectLister
	onClose  func()
	log      *slog.Logger
	limit    int

	ctx    context.Context
	cancel context.CancelFunc

	keys     keyMap
	spinner  spinner.Model
	spinning bool
	abstract viewport.Model
	dialog   *modal.Modal
	picker   *picker

	md          *glamour.TermRenderer
	mdWidth     int
	renderedDoc int64

	priorStats *models.PriorStats
	notice     string

	width  int
	height int
	closed bool
}

// New creates the dialog for projectID. An empty projectID opens the project
// picker when WithProjects is given.
func New(projectID string, fetcher Fetcher, labeler Labeler, opts ...Option) *Model {
	m := &Model{
		fetcher: fetcher,
		labeler: labeler,
		log:     slog.Default(),
		limit:   screening.DefaultExclusionLimit,
		keys:    defaultKeyMap(),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(spinnerStyle),
		),
		abstract: viewport.New(defaultWidth-6, abstractHeight),
		width:    defaultWidth,
		height:   defaultHeight,

		renderedDoc: -1,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.session = screening.New(projectID, m.limit)
	m.ctx, m.cancel = context.WithCancel(context.Background())

	if projectID == "" && m.projects != nil {
		m.picker = newPicker()
	}
	m.rebuild()
	return m
}

// Session exposes the underlying state machine.
func (m *Model) Session() *screening.Session { return m.session }

// Closed reports whether the dialog has been closed.
func (m *Model) Closed() bool { return m.closed }

// Init starts the first fetch, or loads projects for the picker.
func (m *Model) Init() tea.Cmd {
	if m.picker != nil {
		return projectsCmd(m.ctx, m.projects)
	}
	return m.maybeFetch()
}

// Update handles one message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.closed {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case spinner.TickMsg:
		if m.session.View() != screening.ViewLoading {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case docLoadedMsg:
		return m, m.handleLoaded(msg)

	case recordedMsg:
		if msg.err != nil {
			m.recordFailed(msg.docID, msg.label, msg.err)
		}
		return m, m.refreshStats()

	case DeliveredMsg:
		if msg.Decision.ProjectID != m.session.ProjectID() {
			return m, nil
		}
		return m, m.refreshStats()

	case statsMsg:
		if msg.err != nil {
			m.log.Warn("prior stats", "err", msg.err, "project", m.session.ProjectID())
			return m, nil
		}
		s := msg.stats
		m.priorStats = &s
		return m, nil

	case projectsMsg:
		if m.picker == nil {
			return m, nil
		}
		if msg.err != nil {
			m.log.Error("list projects", "err", msg.err)
		}
		m.picker.setProjects(msg.projects, msg.err)
		m.rebuild()
		return m, nil

	case tea.KeyMsg:
		if m.picker != nil {
			return m, m.handlePickerKey(msg)
		}
		return m, m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) handleLoaded(msg docLoadedMsg) tea.Cmd {
	var err error
	if msg.err != nil {
		if errors.Is(msg.err, context.Canceled) {
			return nil
		}
		err = m.session.Fail(msg.ticket, msg.err)
		if err == nil {
			m.log.Error("fetch document", "err", msg.err, "project", m.session.ProjectID(), "ticket", uint64(msg.ticket))
		}
	} else {
		err = m.session.Complete(msg.ticket, msg.docs)
	}
	if errors.Is(err, screening.ErrStaleTicket) {
		m.log.Debug("dropped stale fetch", "ticket", uint64(msg.ticket))
		return nil
	}
	m.rebuild()
	return nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.close()
	case key.Matches(msg, m.keys.Relevant):
		return m.record(models.LabelRelevant)
	case key.Matches(msg, m.keys.Irrelevant):
		return m.record(models.LabelIrrelevant)
	case key.Matches(msg, m.keys.ShowMore):
		if m.session.View() == screening.ViewExhausted {
			return m.showMore()
		}
		return nil
	case key.Matches(msg, m.keys.Retry):
		return m.retry()
	}

	action, cmd := m.dialog.HandleKey(msg)
	if action != "" {
		return tea.Batch(cmd, m.dispatch(action))
	}
	if m.session.View() == screening.ViewDocument {
		var vpCmd tea.Cmd
		m.abstract, vpCmd = m.abstract.Update(msg)
		return tea.Batch(cmd, vpCmd)
	}
	return cmd
}

// dispatch runs a modal action.
func (m *Model) dispatch(action string) tea.Cmd {
	switch action {
	case actionRelevant:
		return m.record(models.LabelRelevant)
	case actionIrrelevant:
		return m.record(models.LabelIrrelevant)
	case actionShowMore:
		return m.showMore()
	case actionRetry:
		return m.retry()
	case actionClose, modal.ActionCancel:
		return m.close()
	}
	return nil
}

// record applies a decision locally and forwards it. A queued decision is
// written before record returns; otherwise it is sent without waiting.
func (m *Model) record(label models.Label) tea.Cmd {
	var (
		doc models.Document
		err error
	)
	if label == models.LabelRelevant {
		doc, err = m.session.RecordInclusion()
	} else {
		doc, err = m.session.RecordExclusion()
	}
	if err != nil {
		m.notice = err.Error()
		return nil
	}
	m.notice = ""
	m.log.Debug("decision", "project", m.session.ProjectID(), "doc", doc.ID, "label", label.String())

	var cmds []tea.Cmd
	if m.queued {
		if err := forward(m.ctx, m.labeler, m.session.ProjectID(), doc.ID, label); err != nil {
			m.recordFailed(doc.ID, label, err)
		}
	} else {
		// an in-flight send outlives close
		cmds = append(cmds, recordCmd(context.WithoutCancel(m.ctx), m.labeler, m.session.ProjectID(), doc, label))
	}
	cmds = append(cmds, m.maybeFetch())
	m.rebuild()
	return tea.Batch(cmds...)
}

func (m *Model) recordFailed(docID int64, label models.Label, err error) {
	m.log.Error("record decision", "err", err, "project", m.session.ProjectID(), "doc", docID, "label", label.String())
	m.notice = "decision not saved: " + err.Error()
}

func (m *Model) refreshStats() tea.Cmd {
	if m.stats == nil {
		return nil
	}
	return statsCmd(m.ctx, m.stats, m.session.ProjectID())
}

func (m *Model) showMore() tea.Cmd {
	m.session.Reset()
	m.notice = ""
	cmd := m.maybeFetch()
	m.rebuild()
	return cmd
}

func (m *Model) retry() tea.Cmd {
	if err := m.session.Retry(); err != nil {
		return nil
	}
	m.notice = ""
	cmd := m.maybeFetch()
	m.rebuild()
	return cmd
}

// maybeFetch starts a fetch when the session wants one.
func (m *Model) maybeFetch() tea.Cmd {
	if !m.session.NeedsFetch() || m.fetcher == nil {
		return nil
	}
	t, err := m.session.BeginFetch()
	if err != nil {
		m.log.Warn("begin fetch", "err", err)
		return nil
	}
	cmds := []tea.Cmd{fetchCmd(m.ctx, m.fetcher, m.session.ProjectID(), t)}
	if !m.spinning {
		m.spinning = true
		cmds = append(cmds, m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

func (m *Model) close() tea.Cmd {
	m.session.Close()
	m.cancel()
	m.closed = true
	if m.onClose != nil {
		m.onClose()
	}
	return tea.Quit
}

// selectProject leaves the picker and starts screening projectID.
func (m *Model) selectProject(projectID string) tea.Cmd {
	m.picker = nil
	m.session.SetProject(projectID)
	m.log.Info("project selected", "project", projectID)
	cmd := m.maybeFetch()
	m.rebuild()
	return cmd
}
