package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asreview/prior/internal/models"
)

// CreateProject adds a project with a generated ID
func (db *DB) CreateProject(name, description string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("create project: name is required")
	}
	id, err := idGenerator()
	if err != nil {
		return nil, fmt.Errorf("generate project id: %w", err)
	}
	p := &models.Project{
		ID:          id,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	_, err = db.conn.Exec(`
		INSERT INTO projects (id, name, description, created_at) VALUES (?, ?, ?, ?)
	`, p.ID, p.Name, p.Description, p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

// GetProject returns a project by ID
func (db *DB) GetProject(id string) (*models.Project, error) {
	return db.scanProject(db.conn.QueryRow(`
		SELECT id, name, description, created_at FROM projects WHERE id = ?
	`, id))
}

// FindProjectByName returns a project by its unique name
func (db *DB) FindProjectByName(name string) (*models.Project, error) {
	return db.scanProject(db.conn.QueryRow(`
		SELECT id, name, description, created_at FROM projects WHERE name = ?
	`, strings.TrimSpace(name)))
}

func (db *DB) scanProject(row *sql.Row) (*models.Project, error) {
	var p models.Project
	var desc sql.NullString
	err := row.Scan(&p.ID, &p.Name, &desc, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Description = desc.String
	return &p, nil
}

// ListProjects returns all projects ordered by name
func (db *DB) ListProjects() ([]models.Project, error) {
	rows, err := db.conn.Query(`
		SELECT id, name, description, created_at FROM projects ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		var desc sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &desc, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Description = desc.String
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// EnsureProject returns the project with name, creating it if missing
func (db *DB) EnsureProject(name string) (*models.Project, error) {
	p, err := db.FindProjectByName(name)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return db.CreateProject(name, "")
}
