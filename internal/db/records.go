package db

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/asreview/prior/internal/models"
)

// Column names accepted for each record field, compared case-insensitively
var csvColumns = map[string][]string{
	"title":    {"title", "primary_title", "ti"},
	"abstract": {"abstract", "abstract_note", "ab"},
	"authors":  {"authors", "author", "au"},
}

// ImportCSV loads records for projectID from a CSV file with a header row.
// A title column is required; abstract and authors are optional.
func (db *DB) ImportCSV(projectID string, r io.Reader) (int, error) {
	if _, err := db.GetProject(projectID); err != nil {
		return 0, fmt.Errorf("import: project %s: %w", projectID, err)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("import: read header: %w", err)
	}
	idx := columnIndex(header)
	titleCol, ok := idx["title"]
	if !ok {
		return 0, fmt.Errorf("import: no title column in header %v", header)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("import: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO records (project_id, title, abstract, authors) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("import: prepare: %w", err)
	}
	defer stmt.Close()

	n := 0
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("import: line %d: %w", line, err)
		}
		title := plainText(field(row, titleCol))
		if title == "" {
			continue
		}
		abstract := ""
		if c, ok := idx["abstract"]; ok {
			abstract = plainText(field(row, c))
		}
		authors := ""
		if c, ok := idx["authors"]; ok {
			authors = field(row, c)
		}
		if _, err := stmt.Exec(projectID, title, abstract, authors); err != nil {
			return 0, fmt.Errorf("import: line %d: %w", line, err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("import: commit: %w", err)
	}
	return n, nil
}

func columnIndex(header []string) map[string]int {
	idx := make(map[string]int)
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for name, aliases := range csvColumns {
			if _, seen := idx[name]; seen {
				continue
			}
			for _, a := range aliases {
				if h == a {
					idx[name] = i
					break
				}
			}
		}
	}
	return idx
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// RandomUnlabeled returns up to n random records of projectID that have no label
func (db *DB) RandomUnlabeled(projectID string, n int) ([]models.Document, error) {
	if n <= 0 {
		n = 1
	}
	if _, err := db.GetProject(projectID); err != nil {
		return nil, err
	}
	rows, err := db.conn.Query(`
		SELECT r.id, r.title, COALESCE(r.abstract, ''), COALESCE(r.authors, '')
		FROM records r
		LEFT JOIN labels l ON l.project_id = r.project_id AND l.record_id = r.id
		WHERE r.project_id = ? AND l.record_id IS NULL
		ORDER BY RANDOM()
		LIMIT ?
	`, projectID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Abstract, &d.Authors); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Label records a decision on a record of projectID. Relabelling overwrites.
func (db *DB) Label(projectID string, recordID int64, label models.Label, prior bool) error {
	if !models.IsValidLabel(label) {
		return fmt.Errorf("label: invalid value %d", label)
	}

	var owner string
	err := db.conn.QueryRow(`SELECT project_id FROM records WHERE id = ?`, recordID).Scan(&owner)
	if err != nil || owner != projectID {
		return fmt.Errorf("record %d in project %s: %w", recordID, projectID, ErrNotFound)
	}

	isPrior := 0
	if prior {
		isPrior = 1
	}
	_, err = db.conn.Exec(`
		INSERT INTO labels (project_id, record_id, label, is_prior, labeled_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project_id, record_id) DO UPDATE SET
			label = excluded.label,
			is_prior = excluded.is_prior,
			labeled_at = excluded.labeled_at
	`, projectID, recordID, int(label), isPrior, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("label record %d: %w", recordID, err)
	}
	return nil
}

// PriorStats counts prior-knowledge labels for projectID
func (db *DB) PriorStats(projectID string) (models.PriorStats, error) {
	if _, err := db.GetProject(projectID); err != nil {
		return models.PriorStats{}, err
	}
	var s models.PriorStats
	err := db.conn.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN label = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN label = 0 THEN 1 ELSE 0 END), 0),
			COUNT(*)
		FROM labels
		WHERE project_id = ? AND is_prior = 1
	`, projectID).Scan(&s.Inclusions, &s.Exclusions, &s.Prior)
	if err != nil {
		return models.PriorStats{}, err
	}
	return s, nil
}

// CountRecords returns total and unlabelled record counts for projectID
func (db *DB) CountRecords(projectID string) (total, unlabeled int, err error) {
	err = db.conn.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN l.record_id IS NULL THEN 1 ELSE 0 END), 0)
		FROM records r
		LEFT JOIN labels l ON l.project_id = r.project_id AND l.record_id = r.id
		WHERE r.project_id = ?
	`, projectID).Scan(&total, &unlabeled)
	return total, unlabeled, err
}
