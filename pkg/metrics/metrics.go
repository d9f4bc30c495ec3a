// Package metrics provides the Prometheus metrics registry for request
// coordination. All metrics are defined in their respective packages
// (promise, pagination, client, cache) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available
// metrics, plus a text dump used by the CLI.
package metrics

import (
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Registry is the default Prometheus registry.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the metrics registered with Registry.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// WriteText writes the metric families whose names start with one of
// prefixes in the Prometheus text format. No prefixes selects everything.
func WriteText(w io.Writer, prefixes ...string) error {
	families, err := Gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	for _, mf := range families {
		if !hasAnyPrefix(mf.GetName(), prefixes) {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

func hasAnyPrefix(name string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// Metrics Documentation
//
// Invocation Metrics (pkg/promise):
//   - request_invocations_total{tracker, outcome} (Counter): Settled invocations
//     by outcome (resolved, rejected, superseded)
//
// Pagination Metrics (pkg/pagination):
//   - request_epochs_total{api} (Counter): Coordinator activations
//   - request_pages_total{api, kind} (Counter): Merged pages by kind (first, more)
//   - request_page_errors_total{api} (Counter): Failed page loads
//   - request_stale_responses_total{api} (Counter): Responses discarded after cancellation
//   - request_loads_skipped_total{api} (Counter): Loads skipped while one was in flight
//   - request_items_accumulated_total{api} (Counter): Items added to merged results
//   - request_page_duration_seconds{api} (Histogram): Page call duration
//
// Request Metrics (pkg/client):
//   - api_requests_total{api, status} (Counter): Requests by API and HTTP status
//   - api_request_duration_seconds{api} (Histogram): Request duration by API
//   - api_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Cache Metrics (pkg/cache):
//   - response_cache_hits_total (Counter): Cache hits
//   - response_cache_misses_total (Counter): Cache misses
//   - response_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(response_cache_hits_total[5m])) /
//   (sum(rate(response_cache_hits_total[5m])) + sum(rate(response_cache_misses_total[5m])))
//
//   # Share of responses dropped by cancellation
//   rate(request_stale_responses_total[5m]) / rate(request_pages_total[5m])
//
//   # P95 Page Latency
//   histogram_quantile(0.95, rate(request_page_duration_seconds_bucket[5m]))
