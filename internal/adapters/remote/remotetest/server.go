// Package remotetest provides an in-memory stand-in for the authoritative
// server's REST API, for tests of the remote client and the sync coordinator.
package remotetest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Call is one request the server received.
type Call struct {
	Method string
	Path   string
	Limit  string
	Body   json.RawMessage
}

// Server is a fake REST server. Lists are served from whatever was set
// with SetList; writes are recorded and acknowledged.
type Server struct {
	*httptest.Server
	Token string

	mu    sync.Mutex
	calls []Call
	lists map[string][]json.RawMessage
	fail  func(method, path string) int
}

// collections accepted for writes.
var collections = []string{
	"/students",
	"/subjects",
	"/class-sections",
	"/subject-assignments",
	"/student-sections",
	"/grade-items",
	"/scores",
	"/quarterly-grade-save",
}

// NewServer starts a fake server that requires the given bearer token.
// An empty token disables the check.
func NewServer(token string) *Server {
	s := &Server{Token: token, lists: make(map[string][]json.RawMessage)}
	s.Server = httptest.NewServer(s.router())
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record, s.authorize, s.injectFailures)

	for _, base := range collections {
		r.Route(base, func(r chi.Router) {
			r.Get("/", s.handleList)
			if base == "/class-sections" {
				r.Get("/{id}/students", s.handleList)
			}
			r.Post("/", s.handleWrite)
			r.Put("/{id}", s.handleWrite)
			r.Delete("/{id}", s.handleDelete)
		})
	}
	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.calls = append(s.calls, Call{
			Method: r.Method,
			Path:   r.URL.Path,
			Limit:  r.URL.Query().Get("limit"),
			Body:   json.RawMessage(body),
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.Token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		fail := s.fail
		s.mu.Unlock()

		if fail != nil {
			if status := fail(r.Method, r.URL.Path); status > 0 {
				writeJSON(w, status, map[string]string{"error": "injected failure"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")

	s.mu.Lock()
	items := append([]json.RawMessage{}, s.lists[path]...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"data": items})
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	status := http.StatusOK
	if r.Method == http.MethodPost {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"data": body})
}

func (s *Server) handleDelete(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// SetList sets what a GET of path returns inside the data envelope.
func (s *Server) SetList(path string, items ...any) {
	raw := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		b, err := json.Marshal(item)
		if err != nil {
			panic(err)
		}
		raw = append(raw, b)
	}

	s.mu.Lock()
	s.lists[path] = raw
	s.mu.Unlock()
}

// FailWhen installs a failure rule: a positive status fails the request.
// Pass nil to stop failing.
func (s *Server) FailWhen(rule func(method, path string) int) {
	s.mu.Lock()
	s.fail = rule
	s.mu.Unlock()
}

// FailPath fails every request matching method and path with status.
func (s *Server) FailPath(method, path string, status int) {
	s.FailWhen(func(m, p string) int {
		if m == method && p == path {
			return status
		}
		return 0
	})
}

// Calls returns every request received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call{}, s.calls...)
}

// Writes returns the non-GET requests received so far.
func (s *Server) Writes() []Call {
	var writes []Call
	for _, c := range s.Calls() {
		if c.Method != http.MethodGet {
			writes = append(writes, c)
		}
	}
	return writes
}

// Reset forgets recorded calls.
func (s *Server) Reset() {
	s.mu.Lock()
	s.calls = nil
	s.mu.Unlock()
}
