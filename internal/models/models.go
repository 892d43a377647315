package models

import (
	"time"
)

// Label is a screening decision on a document.
type Label int

const (
	LabelIrrelevant Label = 0
	LabelRelevant   Label = 1
)

// String returns the label's display name
func (l Label) String() string {
	switch l {
	case LabelRelevant:
		return "relevant"
	case LabelIrrelevant:
		return "irrelevant"
	default:
		return "unknown"
	}
}

// IsValidLabel checks if a label value is a known decision
func IsValidLabel(l Label) bool {
	return l == LabelRelevant || l == LabelIrrelevant
}

// ParseLabel converts "relevant"/"irrelevant" (or "1"/"0") to a Label
func ParseLabel(s string) (Label, bool) {
	switch s {
	case "relevant", "1", "include":
		return LabelRelevant, true
	case "irrelevant", "0", "exclude":
		return LabelIrrelevant, true
	}
	return LabelIrrelevant, false
}

// Document is a single record awaiting a screening decision
type Document struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
	Authors  string `json:"authors,omitempty"`
}

// Project identifies a review project
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// PriorStats summarizes the prior knowledge collected for a project
type PriorStats struct {
	Inclusions int `json:"n_inclusions"`
	Exclusions int `json:"n_exclusions"`
	Prior      int `json:"n_prior"`
}

// Decision is one labelling action queued for delivery to the backend
type Decision struct {
	ID         string
	ProjectID  string
	DocumentID int64
	Label      Label
	CreatedAt  time.Time
	Attempts   int
	LastError  string
	SentAt     *time.Time
}

// Config holds the persisted client settings
type Config struct {
	APIBase        string `json:"api_base,omitempty"`
	ProjectID      string `json:"project_id,omitempty"`
	ExclusionLimit int    `json:"exclusion_limit,omitempty"`
	Token          string `json:"token,omitempty"`
}
