package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/asreview/prior/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

func setupDB(t *testing.T) *DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	db, err := New(conn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return db
}

func seedProject(t *testing.T, db *DB, csvData string) *models.Project {
	t.Helper()
	p, err := db.CreateProject("Review", "")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if csvData != "" {
		if _, err := db.ImportCSV(p.ID, strings.NewReader(csvData)); err != nil {
			t.Fatalf("ImportCSV: %v", err)
		}
	}
	return p
}

const sampleCSV = `Title,Abstract,Authors
Deep learning for screening,We screen things.,"Doe, J"
Active learning review,Another abstract.,Smith
Third paper,,
`

func TestInitialize(t *testing.T) {
	dir := t.TempDir()

	if _, err := Open(dir); err == nil {
		t.Fatal("Open should fail before Initialize")
	}

	db, err := Initialize(dir)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(Path(dir)); os.IsNotExist(err) {
		t.Error("Database file not created")
	}
	if db.BaseDir() != dir {
		t.Errorf("BaseDir() = %q, want %q", db.BaseDir(), dir)
	}
}

func TestCreateAndGetProject(t *testing.T) {
	db := setupDB(t)
	idGenerator = func() (string, error) { return "pr-abc123", nil }
	t.Cleanup(func() { idGenerator = defaultGenerateID })

	p, err := db.CreateProject("  Diabetes  ", "prior set")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if p.ID != "pr-abc123" || p.Name != "Diabetes" {
		t.Errorf("project = %+v", p)
	}

	got, err := db.GetProject("pr-abc123")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got.Name != "Diabetes" || got.Description != "prior set" {
		t.Errorf("GetProject = %+v", got)
	}

	if _, err := db.GetProject("pr-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProject missing: got %v, want ErrNotFound", err)
	}
	if _, err := db.CreateProject("", ""); err == nil {
		t.Error("CreateProject with empty name should fail")
	}
}

func TestEnsureProjectIsIdempotent(t *testing.T) {
	db := setupDB(t)
	a, err := db.EnsureProject("Alpha")
	if err != nil {
		t.Fatalf("EnsureProject: %v", err)
	}
	b, err := db.EnsureProject("Alpha")
	if err != nil {
		t.Fatalf("EnsureProject: %v", err)
	}
	if a.ID != b.ID {
		t.Errorf("EnsureProject created a duplicate: %s vs %s", a.ID, b.ID)
	}

	db.EnsureProject("Beta")
	projects, err := db.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(projects) != 2 || projects[0].Name != "Alpha" || projects[1].Name != "Beta" {
		t.Errorf("ListProjects = %+v", projects)
	}
}

func TestImportCSV(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    int
		wantErr bool
	}{
		{"standard header", sampleCSV, 3, false},
		{"aliases and bom", "\ufeffPrimary_Title\nA\n", 1, false},
		{"ris-style columns", "TI,AB,AU\nA,b,c\nB,,\n", 2, false},
		{"blank titles skipped", "title\n\nReal\n   \n", 1, false},
		{"missing title column", "abstract\nfoo\n", 0, true},
		{"empty file", "", 0, true},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupDB(t)
			p, err := db.CreateProject(fmt.Sprintf("p%d", i), "")
			if err != nil {
				t.Fatalf("CreateProject: %v", err)
			}
			n, err := db.ImportCSV(p.ID, strings.NewReader(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ImportCSV err = %v, wantErr %v", err, tt.wantErr)
			}
			if n != tt.want {
				t.Errorf("imported %d, want %d", n, tt.want)
			}
		})
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  plain   text\n here ", "plain text here"},
		{"<p>First.</p><p>Second.</p>", "First. Second."},
		{"H<sub>2</sub>O in <i>vitro</i>", "H2O in vitro"},
		{"line<br>break", "line break"},
		{"<script>alert(1)</script>kept", "kept"},
		{"a < b and c > d", "a < b and c > d"},
		{"caf&eacute; &amp; co", "café & co"},
	}

	for _, tt := range tests {
		if got := plainText(tt.in); got != tt.want {
			t.Errorf("plainText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestImportCSVStripsMarkup(t *testing.T) {
	db := setupDB(t)
	p := seedProject(t, db, "title,abstract\n<b>Bold</b> title,\"<p>One.</p><p>Two.</p>\"\n")

	docs, err := db.RandomUnlabeled(p.ID, 1)
	if err != nil {
		t.Fatalf("RandomUnlabeled: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d docs, want 1", len(docs))
	}
	if docs[0].Title != "Bold title" {
		t.Errorf("title = %q", docs[0].Title)
	}
	if docs[0].Abstract != "One. Two." {
		t.Errorf("abstract = %q", docs[0].Abstract)
	}
}

func TestImportCSVUnknownProject(t *testing.T) {
	db := setupDB(t)
	if _, err := db.ImportCSV("pr-nope", strings.NewReader(sampleCSV)); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestRandomUnlabeledExcludesLabelled(t *testing.T) {
	db := setupDB(t)
	p := seedProject(t, db, sampleCSV)

	docs, err := db.RandomUnlabeled(p.ID, 10)
	if err != nil {
		t.Fatalf("RandomUnlabeled: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("got %d docs, want 3", len(docs))
	}

	for _, d := range docs[:2] {
		if err := db.Label(p.ID, d.ID, models.LabelIrrelevant, true); err != nil {
			t.Fatalf("Label: %v", err)
		}
	}

	left, err := db.RandomUnlabeled(p.ID, 10)
	if err != nil {
		t.Fatalf("RandomUnlabeled: %v", err)
	}
	if len(left) != 1 || left[0].ID != docs[2].ID {
		t.Errorf("remaining = %+v, want only %d", left, docs[2].ID)
	}

	db.Label(p.ID, left[0].ID, models.LabelRelevant, true)
	none, err := db.RandomUnlabeled(p.ID, 1)
	if err != nil {
		t.Fatalf("RandomUnlabeled: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("exhausted project should return an empty, non-nil slice, got %#v", none)
	}
}

func TestRandomUnlabeledUnknownProject(t *testing.T) {
	db := setupDB(t)
	if _, err := db.RandomUnlabeled("pr-nope", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestLabelValidation(t *testing.T) {
	db := setupDB(t)
	p := seedProject(t, db, sampleCSV)
	other := seedProject2(t, db)

	docs, _ := db.RandomUnlabeled(p.ID, 1)

	if err := db.Label(p.ID, docs[0].ID, models.Label(5), true); err == nil {
		t.Error("invalid label should fail")
	}
	if err := db.Label(other.ID, docs[0].ID, models.LabelRelevant, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("record from another project: got %v, want ErrNotFound", err)
	}
	if err := db.Label(p.ID, 99999, models.LabelRelevant, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown record: got %v, want ErrNotFound", err)
	}
}

func seedProject2(t *testing.T, db *DB) *models.Project {
	t.Helper()
	p, err := db.CreateProject("Other", "")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return p
}

func TestPriorStats(t *testing.T) {
	db := setupDB(t)
	p := seedProject(t, db, sampleCSV)
	docs, _ := db.RandomUnlabeled(p.ID, 3)

	db.Label(p.ID, docs[0].ID, models.LabelRelevant, true)
	db.Label(p.ID, docs[1].ID, models.LabelIrrelevant, true)
	db.Label(p.ID, docs[2].ID, models.LabelIrrelevant, false) // not prior

	stats, err := db.PriorStats(p.ID)
	if err != nil {
		t.Fatalf("PriorStats: %v", err)
	}
	want := models.PriorStats{Inclusions: 1, Exclusions: 1, Prior: 2}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}

	// Relabel flips the tallies
	db.Label(p.ID, docs[1].ID, models.LabelRelevant, true)
	stats, _ = db.PriorStats(p.ID)
	if stats.Inclusions != 2 || stats.Exclusions != 0 {
		t.Errorf("after relabel stats = %+v", stats)
	}

	total, unlabeled, err := db.CountRecords(p.ID)
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if total != 3 || unlabeled != 0 {
		t.Errorf("CountRecords = (%d, %d), want (3, 0)", total, unlabeled)
	}
}
