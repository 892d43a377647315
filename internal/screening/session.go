// Package screening holds the prior-knowledge screening state machine: the
// document loader phases, the inclusion/exclusion tallies, and the exhaustion
// gate. It performs no I/O; callers run fetches and report results back with
// the Ticket handed out by BeginFetch.
package screening

import (
	"fmt"

	"github.com/asreview/prior/internal/models"
)

// DefaultExclusionLimit is the number of irrelevant decisions after which the
// reviewer is told they may be done.
const DefaultExclusionLimit = 5

// Phase is the document loader state
type Phase string

const (
	PhaseIdle    Phase = "idle"    // no document, fetch wanted
	PhaseLoading Phase = "loading" // fetch in flight
	PhaseReady   Phase = "ready"   // document on screen
	PhaseError   Phase = "error"   // last fetch failed, waiting for explicit retry
	PhaseNoMore  Phase = "no_more_documents"
	PhaseClosed  Phase = "closed"
)

// Gate reports whether the reviewer should keep going
type Gate string

const (
	GateReviewing Gate = "reviewing"
	GateExhausted Gate = "exhausted"
)

// View is the content area to render
type View string

const (
	ViewLoading   View = "loading"
	ViewDocument  View = "document"
	ViewExhausted View = "exhausted"
	ViewNoMore    View = "no_more_documents"
)

// Ticket identifies one fetch. Results carrying an older ticket are dropped.
type Ticket uint64

// State is a point-in-time copy of a Session
type State struct {
	ProjectID  string
	Inclusions int
	Exclusions int
	Document   *models.Document
	Loaded     bool
	Phase      Phase
	Gate       Gate
	LastError  error
}

// Session tracks one screening dialog. It is not safe for concurrent use; the
// owning event loop serializes access.
type Session struct {
	projectID  string
	limit      int
	inclusions int
	exclusions int
	doc        *models.Document
	phase      Phase
	generation Ticket
	lastErr    error
}

// New creates a session for projectID. A limit <= 0 uses DefaultExclusionLimit.
func New(projectID string, limit int) *Session {
	if limit <= 0 {
		limit = DefaultExclusionLimit
	}
	return &Session{
		projectID: projectID,
		limit:     limit,
		phase:     PhaseIdle,
	}
}

// ProjectID returns the project being screened
func (s *Session) ProjectID() string { return s.projectID }

// Limit returns the exclusion limit
func (s *Session) Limit() int { return s.limit }

// Phase returns the loader phase
func (s *Session) Phase() Phase { return s.phase }

// Loaded reports whether a document is ready for display
func (s *Session) Loaded() bool { return s.doc != nil }

// Document returns the current document, or nil while loading
func (s *Session) Document() *models.Document {
	if s.doc == nil {
		return nil
	}
	d := *s.doc
	return &d
}

// Inclusions returns the number of relevant decisions since the last reset
func (s *Session) Inclusions() int { return s.inclusions }

// Exclusions returns the number of irrelevant decisions since the last reset
func (s *Session) Exclusions() int { return s.exclusions }

// LastError returns the error from the most recent failed fetch
func (s *Session) LastError() error { return s.lastErr }

// SetProject switches to another project. Any in-flight fetch is invalidated
// and a new one becomes due. Counters are kept.
func (s *Session) SetProject(projectID string) {
	if s.phase == PhaseClosed || projectID == s.projectID {
		return
	}
	s.projectID = projectID
	s.generation++
	s.doc = nil
	s.lastErr = nil
	s.phase = PhaseIdle
}

// NeedsFetch reports whether a fetch should be started now
func (s *Session) NeedsFetch() bool {
	return s.projectID != "" && s.phase == PhaseIdle
}

// BeginFetch moves Idle -> Loading and returns the ticket the result must carry
func (s *Session) BeginFetch() (Ticket, error) {
	if s.projectID == "" {
		return 0, &TransitionError{From: s.phase, Action: "fetch", Reason: "no project selected"}
	}
	if s.phase != PhaseIdle {
		return 0, &TransitionError{From: s.phase, Action: "fetch"}
	}
	s.generation++
	s.phase = PhaseLoading
	return s.generation, nil
}

func (s *Session) current(t Ticket) bool {
	return s.phase == PhaseLoading && t == s.generation
}

// Complete applies a fetch result. The first document becomes current; an
// empty result moves the session to PhaseNoMore.
func (s *Session) Complete(t Ticket, docs []models.Document) error {
	if !s.current(t) {
		return ErrStaleTicket
	}
	s.lastErr = nil
	if len(docs) == 0 {
		s.phase = PhaseNoMore
		return nil
	}
	d := docs[0]
	s.doc = &d
	s.phase = PhaseReady
	return nil
}

// Fail records a fetch failure. Nothing is retried until Retry is called.
func (s *Session) Fail(t Ticket, err error) error {
	if !s.current(t) {
		return ErrStaleTicket
	}
	s.lastErr = err
	s.phase = PhaseError
	return nil
}

// Retry re-arms the loader after a failure or an empty result
func (s *Session) Retry() error {
	if s.phase != PhaseError && s.phase != PhaseNoMore {
		return &TransitionError{From: s.phase, Action: "retry"}
	}
	s.phase = PhaseIdle
	return nil
}

// RecordInclusion marks the current document relevant. The returned document
// is what the caller must forward to its include collaborator.
func (s *Session) RecordInclusion() (models.Document, error) {
	return s.record(models.LabelRelevant)
}

// RecordExclusion marks the current document irrelevant
func (s *Session) RecordExclusion() (models.Document, error) {
	return s.record(models.LabelIrrelevant)
}

func (s *Session) record(label models.Label) (models.Document, error) {
	if s.doc == nil {
		return models.Document{}, ErrNoDocument
	}
	d := *s.doc
	switch label {
	case models.LabelRelevant:
		s.inclusions++
	case models.LabelIrrelevant:
		s.exclusions++
	default:
		return models.Document{}, fmt.Errorf("%w: %d", ErrUnknownLabel, int(label))
	}
	s.doc = nil
	s.phase = PhaseIdle
	return d, nil
}

// Reset zeroes both counters and clears the document, forcing a fresh fetch
func (s *Session) Reset() {
	if s.phase == PhaseClosed {
		return
	}
	s.inclusions = 0
	s.exclusions = 0
	s.doc = nil
	s.lastErr = nil
	s.generation++
	s.phase = PhaseIdle
}

// Close ends the session. Late fetch results are rejected as stale.
func (s *Session) Close() {
	s.generation++
	s.doc = nil
	s.phase = PhaseClosed
}

// Gate returns Exhausted once the exclusion limit is reached
func (s *Session) Gate() Gate {
	if s.exclusions >= s.limit {
		return GateExhausted
	}
	return GateReviewing
}

// View returns the content area to show for the current state
func (s *Session) View() View {
	if s.Gate() == GateExhausted {
		return ViewExhausted
	}
	if s.phase == PhaseNoMore {
		return ViewNoMore
	}
	if s.doc != nil {
		return ViewDocument
	}
	return ViewLoading
}

// State returns a snapshot of the session
func (s *Session) State() State {
	return State{
		ProjectID:  s.projectID,
		Inclusions: s.inclusions,
		Exclusions: s.exclusions,
		Document:   s.Document(),
		Loaded:     s.doc != nil,
		Phase:      s.phase,
		Gate:       s.Gate(),
		LastError:  s.lastErr,
	}
}
