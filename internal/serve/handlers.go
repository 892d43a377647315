package serve

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/asreview/prior/internal/db"
	"github.com/asreview/prior/internal/models"
)

const maxRandomDocs = 10

// ============================================================================
// GET /health
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		WriteError(w, ErrInternal, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	WriteSuccess(w, map[string]interface{}{"status": "ok"}, http.StatusOK)
}

// ============================================================================
// GET /api/projects
// ============================================================================

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.db.ListProjects()
	if err != nil {
		slog.Error("list projects", "err", err)
		WriteError(w, ErrInternal, "failed to list projects", http.StatusInternalServerError)
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	WriteJSON(w, resultList[models.Project]{Result: projects}, http.StatusOK)
}

// ============================================================================
// GET /api/project/{id}/prior_random
// ============================================================================

func (s *Server) handlePriorRandom(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	n := 1
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > maxRandomDocs {
			WriteError(w, ErrValidation, "n must be between 1 and 10", http.StatusBadRequest)
			return
		}
		n = parsed
	}

	docs, err := s.db.RandomUnlabeled(projectID, n)
	if err != nil {
		s.writeStoreError(w, err, "prior_random", projectID)
		return
	}
	WriteJSON(w, resultList[models.Document]{Result: docs}, http.StatusOK)
}

// ============================================================================
// POST /api/project/{id}/labelitem
// ============================================================================

func (s *Server) handleLabelItem(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	if err := r.ParseForm(); err != nil {
		WriteError(w, ErrValidation, "invalid form body", http.StatusBadRequest)
		return
	}

	docID, err := strconv.ParseInt(r.PostForm.Get("doc_id"), 10, 64)
	if err != nil {
		WriteError(w, ErrValidation, "doc_id must be an integer", http.StatusBadRequest)
		return
	}
	label, ok := models.ParseLabel(r.PostForm.Get("label"))
	if !ok {
		WriteError(w, ErrValidation, "label must be 0 or 1", http.StatusBadRequest)
		return
	}
	prior := r.PostForm.Get("is_prior") == "1"

	if err := s.db.Label(projectID, docID, label, prior); err != nil {
		s.writeStoreError(w, err, "labelitem", projectID)
		return
	}

	slog.Debug("labelled", "project", projectID, "doc", docID, "label", label.String(), "prior", prior)
	WriteJSON(w, map[string]bool{"success": true}, http.StatusOK)
}

// ============================================================================
// GET /api/project/{id}/prior_stats
// ============================================================================

func (s *Server) handlePriorStats(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	stats, err := s.db.PriorStats(projectID)
	if err != nil {
		s.writeStoreError(w, err, "prior_stats", projectID)
		return
	}
	WriteJSON(w, stats, http.StatusOK)
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error, op, projectID string) {
	if errors.Is(err, db.ErrNotFound) {
		WriteError(w, ErrNotFound, err.Error(), http.StatusNotFound)
		return
	}
	slog.Error(op, "err", err, "project", projectID)
	WriteError(w, ErrInternal, op+" failed", http.StatusInternalServerError)
}
