package client

import (
	"testing"
)

func TestQuery_URL(t *testing.T) {
	tests := []struct {
		name     string
		query    Query
		baseURL  string
		expected string
	}{
		{
			name:     "no parameters",
			query:    NewQuery("projects"),
			baseURL:  "https://mddb.example.org/api",
			expected: "https://mddb.example.org/api/projects",
		},
		{
			name:     "trailing slash on base",
			query:    NewQuery("projects"),
			baseURL:  "https://mddb.example.org/api/",
			expected: "https://mddb.example.org/api/projects",
		},
		{
			name:     "leading slash on endpoint",
			query:    NewQuery("/projects"),
			baseURL:  "https://mddb.example.org/api",
			expected: "https://mddb.example.org/api/projects",
		},
		{
			name:     "single parameter",
			query:    NewQuery("projects").With("limit", "100"),
			baseURL:  "https://mddb.example.org/api",
			expected: "https://mddb.example.org/api/projects?limit=100",
		},
		{
			name:     "parameters sorted by key",
			query:    NewQuery("projects").With("page", "2").With("limit", "100"),
			baseURL:  "https://mddb.example.org/api",
			expected: "https://mddb.example.org/api/projects?limit=100&page=2",
		},
		{
			name:     "whitespace percent-encoded",
			query:    NewQuery("projects").With("search", "membrane protein"),
			baseURL:  "https://mddb.example.org/api",
			expected: "https://mddb.example.org/api/projects?search=membrane+protein",
		},
		{
			name:     "atom selection percent-encoded",
			query:    NewQuery("projects/A0001/trajectory").With("selection", "backbone and chain A"),
			baseURL:  "https://mddb.example.org/api",
			expected: "https://mddb.example.org/api/projects/A0001/trajectory?selection=backbone+and+chain+A",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.query.URL(tt.baseURL)
			if result != tt.expected {
				t.Errorf("URL() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestQuery_WithIsImmutable(t *testing.T) {
	base := NewQuery("projects").With("search", "membrane")

	page2 := base.With("page", "2")
	page3 := base.With("page", "3")

	if base.Has("page") {
		t.Error("With() modified the receiver")
	}
	if got := page2.URL(""); got != "/projects?page=2&search=membrane" {
		t.Errorf("page2 URL = %q", got)
	}
	if got := page3.URL(""); got != "/projects?page=3&search=membrane" {
		t.Errorf("page3 URL = %q", got)
	}
}

func TestQuery_WithReplacesValue(t *testing.T) {
	q := NewQuery("projects").With("limit", "10").With("limit", "100")

	if got := q.URL(""); got != "/projects?limit=100" {
		t.Errorf("URL = %q, want limit replaced", got)
	}
}

func TestQuery_Has(t *testing.T) {
	q := NewQuery("projects").With("page", "1")

	if !q.Has("page") {
		t.Error("Has(page) = false, want true")
	}
	if q.Has("limit") {
		t.Error("Has(limit) = true, want false")
	}
}
