// Package api is the HTTP client for the review backend's prior-knowledge
// endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/asreview/prior/internal/models"
)

const defaultTimeout = 15 * time.Second

// StatusError is returned for non-2xx responses
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Code, http.StatusText(e.Code), e.Message)
	}
	return fmt.Sprintf("api: %d %s", e.Code, http.StatusText(e.Code))
}

// Temporary reports whether retrying the request could succeed
func (e *StatusError) Temporary() bool {
	switch {
	case e.Code == http.StatusRequestTimeout, e.Code == http.StatusTooManyRequests:
		return true
	default:
		return e.Code >= 500
	}
}

// Client talks to the backend
type Client struct {
	base  string
	token string
	http  *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken sends a bearer token on every request
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// New creates a client for the API rooted at base, e.g. http://localhost:5000/api
func New(base string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Base returns the API root URL
func (c *Client) Base() string { return c.base }

type resultEnvelope[T any] struct {
	Result []T `json:"result"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// PriorRandom asks for a random unlabelled document. The backend answers with a
// list; callers use the first element. An empty list is not an error.
func (c *Client) PriorRandom(ctx context.Context, projectID string) ([]models.Document, error) {
	var env resultEnvelope[models.Document]
	if err := c.get(ctx, projectPath(projectID, "prior_random"), &env); err != nil {
		return nil, fmt.Errorf("prior_random: %w", err)
	}
	return env.Result, nil
}

// LabelItem records a prior-knowledge decision for docID
func (c *Client) LabelItem(ctx context.Context, projectID string, docID int64, label models.Label) error {
	if !models.IsValidLabel(label) {
		return fmt.Errorf("labelitem: invalid label %d", label)
	}
	form := url.Values{}
	form.Set("doc_id", strconv.FormatInt(docID, 10))
	form.Set("label", strconv.Itoa(int(label)))
	form.Set("is_prior", "1")

	req, err := c.newRequest(ctx, http.MethodPost, projectPath(projectID, "labelitem"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("labelitem: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("labelitem: %w", err)
	}
	return nil
}

// IncludeItem labels docID relevant
func (c *Client) IncludeItem(ctx context.Context, projectID string, docID int64) error {
	return c.LabelItem(ctx, projectID, docID, models.LabelRelevant)
}

// ExcludeItem labels docID irrelevant
func (c *Client) ExcludeItem(ctx context.Context, projectID string, docID int64) error {
	return c.LabelItem(ctx, projectID, docID, models.LabelIrrelevant)
}

// PriorStats returns the prior-knowledge tallies kept by the backend
func (c *Client) PriorStats(ctx context.Context, projectID string) (models.PriorStats, error) {
	var stats models.PriorStats
	if err := c.get(ctx, projectPath(projectID, "prior_stats"), &stats); err != nil {
		return models.PriorStats{}, fmt.Errorf("prior_stats: %w", err)
	}
	return stats, nil
}

// Projects lists the projects known to the backend
func (c *Client) Projects(ctx context.Context) ([]models.Project, error) {
	var env resultEnvelope[models.Project]
	if err := c.get(ctx, "/projects", &env); err != nil {
		return nil, fmt.Errorf("projects: %w", err)
	}
	return env.Result, nil
}

func projectPath(projectID, endpoint string) string {
	return "/project/" + url.PathEscape(projectID) + "/" + endpoint
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	se := &StatusError{Code: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body errorBody
	if json.Unmarshal(data, &body) == nil {
		switch {
		case body.Error != nil && body.Error.Message != "":
			se.Message = body.Error.Message
		case body.Message != "":
			se.Message = body.Message
		}
	}
	if se.Message == "" {
		se.Message = strings.TrimSpace(string(data))
	}
	return se
}
