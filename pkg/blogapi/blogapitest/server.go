// Package blogapitest provides an in-memory content API for tests.
package blogapitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"

	"github.com/gorilla/mux"

	"github.com/dileepadev/blogsync/pkg/blogapi"
)

// APIKey is the key the fake server accepts unless configured otherwise
const APIKey = "test-api-key"

// stored is a record as the fake API keeps and lists it
type stored struct {
	ID    string `json:"_id"`
	Slug  string `json:"slug"`
	Index int    `json:"index"`
	Title string `json:"title,omitempty"`
}

// Server is a fake content API backed by a map keyed by slug
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	records    map[string]stored
	requests   []blogapi.SyncRequest
	runIDs     []string
	failSlugs  map[string]int
	listStatus int
	rawList    string
	responseID bool
}

// Option configures a Server
type Option func(*Server)

// WithRecords seeds the server with existing records
func WithRecords(records ...blogapi.Record) Option {
	return func(s *Server) {
		for _, r := range records {
			s.records[r.Slug] = stored{ID: "id-" + r.Slug, Slug: r.Slug, Index: r.Index}
		}
	}
}

// WithFailingSlug makes upserts for slug answer with the given status
func WithFailingSlug(slug string, status int) Option {
	return func(s *Server) {
		s.failSlugs[slug] = status
	}
}

// WithListStatus makes GET /blogs answer with the given status
func WithListStatus(status int) Option {
	return func(s *Server) {
		s.listStatus = status
	}
}

// WithRawList makes GET /blogs answer with the given body verbatim
func WithRawList(body string) Option {
	return func(s *Server) {
		s.rawList = body
	}
}

// WithoutResponseID makes successful upserts answer with an empty body
func WithoutResponseID() Option {
	return func(s *Server) {
		s.responseID = false
	}
}

// NewServer starts a fake content API. Callers must Close it.
func NewServer(opts ...Option) *Server {
	s := &Server{
		records:    map[string]stored{},
		failSlugs:  map[string]int{},
		responseID: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.HandleFunc("/blogs", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/blogs/sync", s.handleSync).Methods(http.MethodPost)
	s.Server = httptest.NewServer(r)
	return s
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listStatus != 0 {
		http.Error(w, "listing unavailable", s.listStatus)
		return
	}
	if s.rawList != "" {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(s.rawList))
		return
	}

	writeJSON(w, http.StatusOK, s.sortedRecords())
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(blogapi.APIKeyHeader) != APIKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid api key"})
		return
	}

	var req blogapi.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	s.runIDs = append(s.runIDs, r.Header.Get(blogapi.RunIDHeader))

	if status, ok := s.failSlugs[req.Slug]; ok {
		writeJSON(w, status, map[string]string{"message": "sync rejected"})
		return
	}

	record := s.records[req.Slug]
	if record.ID == "" {
		record.ID = "id-" + req.Slug
	}
	record.Slug = req.Slug
	record.Index = req.Index
	record.Title = req.Title
	s.records[req.Slug] = record

	if !s.responseID {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) sortedRecords() []stored {
	records := make([]stored, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Slug < records[j].Slug
	})
	return records
}

// Records returns the stored records sorted by slug
func (s *Server) Records() []blogapi.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]blogapi.Record, 0, len(s.records))
	for _, r := range s.sortedRecords() {
		records = append(records, blogapi.Record{Slug: r.Slug, Index: r.Index})
	}
	return records
}

// Record returns the stored record for slug
func (s *Server) Record(slug string) (blogapi.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[slug]
	return blogapi.Record{Slug: r.Slug, Index: r.Index}, ok
}

// Requests returns every upsert body received, in arrival order
func (s *Server) Requests() []blogapi.SyncRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]blogapi.SyncRequest(nil), s.requests...)
}

// RunIDs returns the run ID header of every upsert received
func (s *Server) RunIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.runIDs...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
