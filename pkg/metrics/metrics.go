// Package metrics documents the Prometheus metrics exposed by the MDDB
// client. Each metric is defined once in its owning package (client,
// pagination, ratelimit) and registered via promauto on the default
// registry; this package is the reference for all of them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the Prometheus registry used by the MDDB client.
// All metrics are automatically registered via promauto in their
// respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - mddb_requests_total{endpoint, status} (Counter): requests by endpoint and HTTP status
//   - mddb_request_duration_seconds{endpoint} (Histogram): request duration by endpoint
//   - mddb_errors_total{class} (Counter): errors by class (transport, protocol, cancelled)
//   - mddb_download_bytes_total (Counter): bytes written by file downloads
//
// Pagination Metrics (pkg/pagination):
//   - mddb_pages_fetched_total (Counter): collection pages fetched
//   - mddb_fetch_duration_seconds{mode} (Histogram): whole-collection aggregation
//     duration by mode (sequential, parallel, stream)
//   - mddb_aggregation_failures_total{class} (Counter): aborted aggregations by error class
//
// Request Budget Metrics (pkg/ratelimit):
//   - mddb_request_budget_remaining (Gauge): requests remaining in the current window
//   - mddb_request_budget_blocks_total (Counter): requests rejected on an exhausted window
//   - mddb_request_budget_throttles_total (Counter): requests delayed on a low window
//
// Example Prometheus Queries:
//
//   # Request error rate
//   rate(mddb_errors_total[5m])
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(mddb_request_duration_seconds_bucket[5m]))
//
//   # Pages per aggregation
//   rate(mddb_pages_fetched_total[5m]) / rate(mddb_fetch_duration_seconds_count[5m])
//
//   # Budget pressure
//   mddb_request_budget_remaining < 50
