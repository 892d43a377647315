package serve

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/asreview/prior/internal/api"
	"github.com/asreview/prior/internal/db"
	"github.com/asreview/prior/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// newTestDB opens an in-memory store with one project holding two records.
func newTestDB(t *testing.T) (*db.DB, *models.Project) {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	database, err := db.New(conn)
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	p, err := database.CreateProject("Review", "")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	csvData := "title,abstract\nFirst,One\nSecond,Two\n"
	if _, err := database.ImportCSV(p.ID, strings.NewReader(csvData)); err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	return database, p
}

// newTestServer starts an httptest server over a seeded store.
func newTestServer(t *testing.T, config ServeConfig) (*httptest.Server, *models.Project) {
	t.Helper()
	database, p := newTestDB(t)
	ts := httptest.NewServer(NewServer(database, config).Handler())
	t.Cleanup(ts.Close)
	return ts, p
}

func decodeEnvelope(t *testing.T, resp *http.Response) Envelope {
	t.Helper()
	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env
}

// ============================================================================
// Route Tests
// ============================================================================

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, ServeConfig{})

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if env := decodeEnvelope(t, resp); !env.OK {
		t.Error("ok = false, want true")
	}
}

func TestListProjects(t *testing.T) {
	ts, p := newTestServer(t, ServeConfig{})

	resp, err := http.Get(ts.URL + "/api/projects")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var body resultList[models.Project]
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Result) != 1 || body.Result[0].ID != p.ID {
		t.Errorf("projects = %+v", body.Result)
	}
}

func TestPriorRandomShape(t *testing.T) {
	ts, p := newTestServer(t, ServeConfig{})

	resp, err := http.Get(ts.URL + "/api/project/" + p.ID + "/prior_random")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var raw map[string][]map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	docs := raw["result"]
	if len(docs) != 1 {
		t.Fatalf("result has %d docs, want 1", len(docs))
	}
	for _, key := range []string{"id", "title", "abstract"} {
		if _, ok := docs[0][key]; !ok {
			t.Errorf("document missing %q: %v", key, docs[0])
		}
	}
}

func TestPriorRandomValidation(t *testing.T) {
	ts, p := newTestServer(t, ServeConfig{})

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"n too large", "/api/project/" + p.ID + "/prior_random?n=50", http.StatusBadRequest},
		{"n not a number", "/api/project/" + p.ID + "/prior_random?n=x", http.StatusBadRequest},
		{"unknown project", "/api/project/pr-nope/prior_random", http.StatusNotFound},
		{"n two", "/api/project/" + p.ID + "/prior_random?n=2", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			if err != nil {
				t.Fatalf("GET: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestLabelItemValidation(t *testing.T) {
	ts, p := newTestServer(t, ServeConfig{})

	tests := []struct {
		name   string
		form   url.Values
		status int
	}{
		{"missing doc_id", url.Values{"label": {"1"}}, http.StatusBadRequest},
		{"bad label", url.Values{"doc_id": {"1"}, "label": {"2"}}, http.StatusBadRequest},
		{"unknown doc", url.Values{"doc_id": {"999"}, "label": {"1"}}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.PostForm(ts.URL+"/api/project/"+p.ID+"/labelitem", tt.form)
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			env := decodeEnvelope(t, resp)
			if env.OK || env.Error == nil {
				t.Errorf("expected error envelope, got %+v", env)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts, p := newTestServer(t, ServeConfig{})

	resp, err := http.Post(ts.URL+"/api/project/"+p.ID+"/prior_random", "text/plain", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

// TestClientRoundTrip drives the real API client against the server until the
// project runs out of documents.
func TestClientRoundTrip(t *testing.T) {
	ts, p := newTestServer(t, ServeConfig{Token: "tok"})
	ctx := context.Background()
	c := api.New(ts.URL+APIPrefix, api.WithToken("tok"))

	projects, err := c.Projects(ctx)
	if err != nil || len(projects) != 1 {
		t.Fatalf("Projects = %v, %v", projects, err)
	}

	seen := map[int64]bool{}
	for i := 0; i < 2; i++ {
		docs, err := c.PriorRandom(ctx, p.ID)
		if err != nil {
			t.Fatalf("PriorRandom: %v", err)
		}
		if len(docs) != 1 {
			t.Fatalf("got %d docs, want 1", len(docs))
		}
		if seen[docs[0].ID] {
			t.Fatalf("document %d served twice", docs[0].ID)
		}
		seen[docs[0].ID] = true

		if i == 0 {
			err = c.IncludeItem(ctx, p.ID, docs[0].ID)
		} else {
			err = c.ExcludeItem(ctx, p.ID, docs[0].ID)
		}
		if err != nil {
			t.Fatalf("label: %v", err)
		}
	}

	docs, err := c.PriorRandom(ctx, p.ID)
	if err != nil {
		t.Fatalf("PriorRandom: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected empty result once all records are labelled, got %+v", docs)
	}

	stats, err := c.PriorStats(ctx, p.ID)
	if err != nil {
		t.Fatalf("PriorStats: %v", err)
	}
	if stats != (models.PriorStats{Inclusions: 1, Exclusions: 1, Prior: 2}) {
		t.Errorf("stats = %+v", stats)
	}

	// Unknown project surfaces as a permanent StatusError
	_, err = c.PriorStats(ctx, "pr-missing")
	var se *api.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound || se.Temporary() {
		t.Errorf("err = %v, want non-temporary 404", err)
	}
}

// ============================================================================
// Auth Middleware Tests
// ============================================================================

func TestAuthMiddleware(t *testing.T) {
	ts, _ := newTestServer(t, ServeConfig{Token: "secret-token"})

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"no header", "/api/projects", "", http.StatusUnauthorized},
		{"wrong token", "/api/projects", "Bearer wrong-token", http.StatusUnauthorized},
		{"basic auth", "/api/projects", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"correct token", "/api/projects", "Bearer secret-token", http.StatusOK},
		{"health exempt", "/health", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", ts.URL+tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("GET %s: %v", tt.path, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if tt.status == http.StatusUnauthorized {
				env := decodeEnvelope(t, resp)
				if env.Error == nil || env.Error.Code != ErrUnauthorized {
					t.Errorf("error.code = %v, want %s", env.Error, ErrUnauthorized)
				}
			}
		})
	}
}

// ============================================================================
// CORS Middleware Tests
// ============================================================================

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		origin     string
		method     string
		wantOrigin string
		wantStatus int
	}{
		{"not configured", "", "http://example.com", "GET", "", http.StatusOK},
		{"matching origin", "http://localhost:3000", "http://localhost:3000", "GET", "http://localhost:3000", http.StatusOK},
		{"non-matching origin", "http://localhost:3000", "http://evil.com", "GET", "", http.StatusOK},
		{"wildcard", "*", "http://anything.com", "GET", "http://anything.com", http.StatusOK},
		{"preflight", "http://localhost:3000", "http://localhost:3000", "OPTIONS", "http://localhost:3000", http.StatusNoContent},
		{"no origin header", "http://localhost:3000", "", "GET", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, _ := newTestServer(t, ServeConfig{CORSOrigin: tt.configured})

			req, _ := http.NewRequest(tt.method, ts.URL+"/api/projects", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if h := resp.Header.Get("Access-Control-Allow-Origin"); h != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", h, tt.wantOrigin)
			}
		})
	}
}

// ============================================================================
// Recovery Middleware Tests
// ============================================================================

func TestRecoveryMiddleware_CatchesPanic(t *testing.T) {
	s := &Server{}
	h := s.recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/projects", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	var env Envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error == nil || env.Error.Code != ErrInternal {
		t.Errorf("error = %+v, want code %s", env.Error, ErrInternal)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	database, _ := newTestDB(t)
	srv := NewServer(database, ServeConfig{Addr: "127.0.0.1", Port: 0})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := srv.ListenAndServe(ctx); err != nil {
		t.Errorf("ListenAndServe after cancel = %v, want nil", err)
	}
}

// ============================================================================
// Rate Limit Middleware Tests
// ============================================================================

func TestRateLimitMiddleware(t *testing.T) {
	ts, _ := newTestServer(t, ServeConfig{RateLimit: 0.001, RateBurst: 2})

	get := func(path string) *http.Response {
		t.Helper()
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		return resp
	}

	for i := 0; i < 2; i++ {
		if resp := get("/api/projects"); resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, resp.StatusCode)
		}
	}

	resp := get("/api/projects")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	if resp := get("/health"); resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200 (exempt)", resp.StatusCode)
	}
}

func TestRateLimiterSweepsIdleClients(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	first := rl.get("10.0.0.1")
	if rl.get("10.0.0.1") != first {
		t.Fatal("limiter not reused for the same client")
	}

	now = now.Add(10 * time.Minute)
	rl.get("10.0.0.2")

	rl.mu.Lock()
	_, kept := rl.limiters["10.0.0.1"]
	rl.mu.Unlock()
	if kept {
		t.Error("idle client limiter was not swept")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.7:5123"
	if got := clientIP(r); got != "192.0.2.7" {
		t.Errorf("clientIP = %q", got)
	}
	r.RemoteAddr = "garbage"
	if got := clientIP(r); got != "garbage" {
		t.Errorf("clientIP = %q", got)
	}
}
