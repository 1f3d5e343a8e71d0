// Package testutil provides testing utilities for the MDDB client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// DefaultCeiling is the per-request page size the mock enforces, matching
// the real service.
const DefaultCeiling = 100

// DefaultLimit is the page size served when the request carries no limit.
const DefaultLimit = 10

// ProjectDoc is one entry served by the mock collection endpoint.
type ProjectDoc struct {
	Accession string         `json:"accession"`
	Published bool           `json:"published"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MockMDDB is a configurable mock MDDB server for testing. It serves the
// real wire contract: a paginated projects collection with filteredCount,
// a server-side limit ceiling, 1-based pages, and per-entry file endpoints.
type MockMDDB struct {
	server *httptest.Server

	mu           sync.RWMutex
	projects     []ProjectDoc
	ceiling      int
	defaultLimit int
	failPages    map[int]int
	handlers     map[string]http.HandlerFunc

	// Tracking
	requestCount   int
	requestedPages []int
	lastRequestURL *url.URL
}

// NewMockMDDB creates and starts a mock server with an empty collection.
func NewMockMDDB() *MockMDDB {
	mock := &MockMDDB{
		ceiling:      DefaultCeiling,
		defaultLimit: DefaultLimit,
		failPages:    make(map[int]int),
		handlers:     make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.route))
	return mock
}

// URL returns the mock server URL, usable as a client base URL.
func (m *MockMDDB) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockMDDB) Close() {
	m.server.Close()
}

// SeedProjects fills the collection with n synthetic entries with
// accessions A0001, A0002, ...
func (m *MockMDDB) SeedProjects(n int) {
	projects := make([]ProjectDoc, 0, n)
	for i := 1; i <= n; i++ {
		projects = append(projects, ProjectDoc{
			Accession: fmt.Sprintf("A%04d", i),
			Published: true,
			Metadata: map[string]any{
				"NAME": fmt.Sprintf("System %d", i),
			},
		})
	}
	m.SetProjects(projects)
}

// SetProjects replaces the collection.
func (m *MockMDDB) SetProjects(projects []ProjectDoc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects = projects
}

// SetCeiling changes the per-request page size ceiling.
func (m *MockMDDB) SetCeiling(ceiling int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ceiling = ceiling
}

// FailPage makes the collection endpoint answer the given 1-based page with
// an HTTP error status.
func (m *MockMDDB) FailPage(page, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPages[page] = status
}

// SetHandler overrides the handler for an exact path.
func (m *MockMDDB) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetRawResponse makes an exact path answer with a fixed status and body.
func (m *MockMDDB) SetRawResponse(path string, status int, body string) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	})
}

// RequestCount returns the number of requests served.
func (m *MockMDDB) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// RequestedPages returns the 1-based page index of every collection request
// served, in arrival order. Requests without a page parameter count as
// page 1.
func (m *MockMDDB) RequestedPages() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.requestedPages...)
}

// LastRequestURL returns the URL of the most recent request.
func (m *MockMDDB) LastRequestURL() *url.URL {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestURL
}

// Reset clears all tracking counters.
func (m *MockMDDB) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.requestedPages = nil
	m.lastRequestURL = nil
}

// route dispatches a request to an override handler or the built-in
// endpoints.
func (m *MockMDDB) route(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requestCount++
	cloned := *r.URL
	m.lastRequestURL = &cloned
	handler, overridden := m.handlers[r.URL.Path]
	m.mu.Unlock()

	if overridden {
		handler(w, r)
		return
	}

	path := strings.Trim(r.URL.Path, "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "projects":
		m.serveCollection(w, r)
	case len(parts) == 2 && parts[0] == "projects":
		m.serveProject(w, parts[1])
	case len(parts) == 3 && parts[0] == "projects" && parts[2] == "files":
		m.serveFileList(w, parts[1])
	case len(parts) == 3 && parts[0] == "projects" && parts[2] == "structure":
		m.serveStructure(w, r, parts[1])
	case len(parts) == 3 && parts[0] == "projects" && parts[2] == "trajectory":
		m.serveTrajectory(w, r, parts[1])
	case len(parts) == 4 && parts[0] == "projects" && parts[2] == "files":
		m.serveFile(w, parts[1], parts[3])
	default:
		http.NotFound(w, r)
	}
}

// serveCollection answers the paginated projects endpoint.
func (m *MockMDDB) serveCollection(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	projects := m.projects
	ceiling := m.ceiling
	defaultLimit := m.defaultLimit
	failPages := m.failPages
	m.mu.RUnlock()

	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, `{"error": "invalid limit"}`, http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	// The real service clamps oversized limits silently.
	if limit > ceiling {
		limit = ceiling
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, `{"error": "invalid page"}`, http.StatusBadRequest)
			return
		}
		page = parsed
	}

	m.mu.Lock()
	m.requestedPages = append(m.requestedPages, page)
	m.mu.Unlock()

	if status, ok := failPages[page]; ok {
		http.Error(w, `{"error": "injected failure"}`, status)
		return
	}

	filtered := filterProjects(projects, r.URL.Query().Get("search"))

	start := (page - 1) * limit
	end := start + limit
	if start > len(filtered) {
		start = len(filtered)
	}
	if end > len(filtered) {
		end = len(filtered)
	}

	items := filtered[start:end]
	if items == nil {
		items = []ProjectDoc{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"filteredCount": len(filtered),
		"projects":      items,
	})
}

// serveProject answers the single-entry metadata endpoint.
func (m *MockMDDB) serveProject(w http.ResponseWriter, accession string) {
	m.mu.RLock()
	projects := m.projects
	m.mu.RUnlock()

	for _, p := range projects {
		if p.Accession == accession {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	http.Error(w, `{"error": "project not found"}`, http.StatusNotFound)
}

// serveFileList answers the per-entry artifact listing.
func (m *MockMDDB) serveFileList(w http.ResponseWriter, accession string) {
	writeJSON(w, http.StatusOK, []map[string]any{
		{"name": "structure.pdb", "size": int64(len(m.structureBody(accession)))},
		{"name": "trajectory.xtc", "size": int64(len(m.trajectoryBody(accession, "", "")))},
	})
}

func (m *MockMDDB) serveStructure(w http.ResponseWriter, r *http.Request, accession string) {
	w.Header().Set("Content-Type", "chemical/x-pdb")
	w.WriteHeader(http.StatusOK)
	w.Write(m.structureBody(accession))
}

func (m *MockMDDB) serveTrajectory(w http.ResponseWriter, r *http.Request, accession string) {
	q := r.URL.Query()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(m.trajectoryBody(accession, q.Get("frames"), q.Get("format")))
}

func (m *MockMDDB) serveFile(w http.ResponseWriter, accession, name string) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "file %s of %s", name, accession)
}

// structureBody is a minimal PDB-shaped payload; content only needs to be
// deterministic for byte-count assertions.
func (m *MockMDDB) structureBody(accession string) []byte {
	return []byte(fmt.Sprintf("HEADER    %s\nATOM      1  N   MET A   1\nEND\n", accession))
}

func (m *MockMDDB) trajectoryBody(accession, frames, format string) []byte {
	return []byte(fmt.Sprintf("trajectory %s frames=%s format=%s", accession, frames, format))
}

// filterProjects applies the free-text search to the accession and name.
func filterProjects(projects []ProjectDoc, search string) []ProjectDoc {
	if search == "" {
		return projects
	}
	needle := strings.ToLower(search)
	filtered := make([]ProjectDoc, 0, len(projects))
	for _, p := range projects {
		name, _ := p.Metadata["NAME"].(string)
		if strings.Contains(strings.ToLower(p.Accession), needle) ||
			strings.Contains(strings.ToLower(name), needle) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
