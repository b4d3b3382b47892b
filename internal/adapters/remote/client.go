// Package remote is the HTTP adapter for the authoritative server's REST API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/gradebook/internal/ports/secondary"
)

// =============================================================================
// ENDPOINTS
// =============================================================================

// Default client settings.
const (
	DefaultPageSize = 100
	DefaultTimeout  = 30 * time.Second
)

// endpoints maps a syncable table to its REST collection.
var endpoints = map[string]string{
	secondary.TableStudents:           "/students",
	secondary.TableSubjects:           "/subjects",
	secondary.TableClassSections:      "/class-sections",
	secondary.TableSubjectAssignments: "/subject-assignments",
	secondary.TableStudentSections:    "/student-sections",
	secondary.TableGradeItems:         "/grade-items",
	secondary.TableStudentScores:      "/scores",
	secondary.TableQuarterlyGrades:    "/quarterly-grade-save",
}

// ErrUnknownTable is returned for outbox entries no endpoint accepts.
var ErrUnknownTable = errors.New("no endpoint for table")

// Route returns the HTTP method and path a queued mutation replays against.
//
// INSERT posts to the collection, UPDATE and DELETE address {path}/{id}.
// Quarterly grades are saved through a single upsert endpoint, so both
// INSERT and UPDATE post to the collection.
func Route(table, operation, recordID string) (method, path string, err error) {
	base, ok := endpoints[table]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	item := base + "/" + url.PathEscape(recordID)
	switch operation {
	case "INSERT":
		return http.MethodPost, base, nil
	case "UPDATE":
		if table == secondary.TableQuarterlyGrades {
			return http.MethodPost, base, nil
		}
		return http.MethodPut, item, nil
	case "DELETE":
		return http.MethodDelete, item, nil
	default:
		return "", "", fmt.Errorf("unknown operation %q", operation)
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: server returned status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: server returned status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 512

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the server with a bearer token.
type Client struct {
	baseURL  string
	token    string
	pageSize int
	client   *http.Client
	logger   *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithPageSize sets the limit sent to list endpoints.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for baseURL.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		pageSize: DefaultPageSize,
		client:   &http.Client{Timeout: DefaultTimeout},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Factory returns a secondary.RemoteFactory building clients with opts.
func Factory(opts ...Option) secondary.RemoteFactory {
	return func(baseURL, token string) secondary.RemoteAPI {
		return New(baseURL, token, opts...)
	}
}

var _ secondary.RemoteAPI = (*Client)(nil)

// do sends one request and returns the response body of a 2xx answer.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("remote call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := strings.TrimSpace(string(respBody))
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return nil, &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: text}
	}
	return respBody, nil
}

// Replay sends one queued mutation. A DELETE of a record the server no
// longer has counts as confirmed.
func (c *Client) Replay(ctx context.Context, table, operation, recordID string, payload json.RawMessage) error {
	method, path, err := Route(table, operation, recordID)
	if err != nil {
		return err
	}

	var body []byte
	if method != http.MethodDelete {
		body = payload
	}

	_, err = c.do(ctx, method, path, body)
	var statusErr *StatusError
	if method == http.MethodDelete && errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

// envelope is the list response shape.
type envelope[T any] struct {
	Data []T `json:"data"`
}

func list[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	respBody, err := c.do(ctx, http.MethodGet, path+"?limit="+strconv.Itoa(c.pageSize), nil)
	if err != nil {
		return nil, err
	}

	var env envelope[T]
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return env.Data, nil
}

// FetchSections lists class sections.
func (c *Client) FetchSections(ctx context.Context) ([]*secondary.SectionRecord, error) {
	return list[*secondary.SectionRecord](ctx, c, endpoints[secondary.TableClassSections])
}

// FetchSubjects lists subjects.
func (c *Client) FetchSubjects(ctx context.Context) ([]*secondary.SubjectRecord, error) {
	return list[*secondary.SubjectRecord](ctx, c, endpoints[secondary.TableSubjects])
}

// FetchSectionStudents lists the students enrolled in a section.
func (c *Client) FetchSectionStudents(ctx context.Context, sectionID string) ([]*secondary.StudentRecord, error) {
	return list[*secondary.StudentRecord](ctx, c,
		endpoints[secondary.TableClassSections]+"/"+url.PathEscape(sectionID)+"/students")
}

// FetchSubjectAssignments lists subject/section assignments.
func (c *Client) FetchSubjectAssignments(ctx context.Context) ([]*secondary.AssignmentRecord, error) {
	return list[*secondary.AssignmentRecord](ctx, c, endpoints[secondary.TableSubjectAssignments])
}
