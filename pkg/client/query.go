package client

import (
	"net/url"
	"strings"
)

// Query identifies one request against an MDDB API instance: an endpoint
// path relative to the base URL plus query parameters. Query values are
// immutable; With returns a copy so a base query can be reused across pages.
type Query struct {
	endpoint string
	params   url.Values
}

// NewQuery creates a query for the given endpoint path (e.g. "projects" or
// "projects/A0001/structure").
func NewQuery(endpoint string) Query {
	return Query{
		endpoint: endpoint,
		params:   url.Values{},
	}
}

// With returns a copy of the query with the parameter set.
// Setting a parameter twice replaces the earlier value.
func (q Query) With(key, value string) Query {
	params := url.Values{}
	for k, vs := range q.params {
		params[k] = append([]string(nil), vs...)
	}
	params.Set(key, value)
	return Query{
		endpoint: q.endpoint,
		params:   params,
	}
}

// Has reports whether the parameter is set.
func (q Query) Has(key string) bool {
	return q.params.Has(key)
}

// Endpoint returns the endpoint path.
func (q Query) Endpoint() string {
	return q.endpoint
}

// URL renders the full percent-encoded request URL against the base URL.
// url.Values.Encode handles the required normalization: embedded whitespace
// in parameter values (e.g. atom selections like "backbone and chain A")
// is percent-encoded before transmission.
func (q Query) URL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(q.endpoint, "/")
	if len(q.params) == 0 {
		return u
	}
	return u + "?" + q.params.Encode()
}
