package screen

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/asreview/prior/internal/models"
	"github.com/asreview/prior/internal/screening"
)

// docLoadedMsg carries the result of one prior_random fetch
type docLoadedMsg struct {
	ticket screening.Ticket
	docs   []models.Document
	err    error
}

// recordedMsg reports the outcome of forwarding a decision
type recordedMsg struct {
	docID int64
	label models.Label
	err   error
}

// statsMsg carries refreshed project totals
type statsMsg struct {
	stats models.PriorStats
	err   error
}

// projectsMsg carries the project list for the picker
type projectsMsg struct {
	projects []models.Project
	err      error
}

func fetchCmd(ctx context.Context, f Fetcher, projectID string, t screening.Ticket) tea.Cmd {
	return func() tea.Msg {
		docs, err := f.PriorRandom(ctx, projectID)
		return docLoadedMsg{ticket: t, docs: docs, err: err}
	}
}

// DeliveredMsg tells the dialog that a queued decision reached the backend.
// Send it from the outbox's delivery callback.
type DeliveredMsg struct {
	Decision models.Decision
}

func forward(ctx context.Context, l Labeler, projectID string, docID int64, label models.Label) error {
	if label == models.LabelRelevant {
		return l.IncludeItem(ctx, projectID, docID)
	}
	return l.ExcludeItem(ctx, projectID, docID)
}

func recordCmd(ctx context.Context, l Labeler, projectID string, doc models.Document, label models.Label) tea.Cmd {
	return func() tea.Msg {
		err := forward(ctx, l, projectID, doc.ID, label)
		return recordedMsg{docID: doc.ID, label: label, err: err}
	}
}

func statsCmd(ctx context.Context, s StatsUpdater, projectID string) tea.Cmd {
	return func() tea.Msg {
		stats, err := s.PriorStats(ctx, projectID)
		return statsMsg{stats: stats, err: err}
	}
}

func projectsCmd(ctx context.Context, p ProjectLister) tea.Cmd {
	return func() tea.Msg {
		projects, err := p.Projects(ctx)
		return projectsMsg{projects: projects, err: err}
	}
}
