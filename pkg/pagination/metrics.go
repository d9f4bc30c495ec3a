package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// epochsTotal counts coordinator activations by API.
	epochsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "request_epochs_total",
		Help: "Total request epochs started by API",
	}, []string{"api"})

	// pagesTotal counts merged pages by API and kind ("first", "more").
	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "request_pages_total",
		Help: "Total pages loaded by API and kind",
	}, []string{"api", "kind"})

	pageErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "request_page_errors_total",
		Help: "Total failed page loads by API",
	}, []string{"api"})

	// staleResponsesTotal counts responses dropped because their epoch ended.
	staleResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "request_stale_responses_total",
		Help: "Total page responses discarded after cancellation by API",
	}, []string{"api"})

	loadsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "request_loads_skipped_total",
		Help: "Total page loads skipped because another load was in flight",
	}, []string{"api"})

	itemsAccumulatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "request_items_accumulated_total",
		Help: "Total items added to accumulated results by API",
	}, []string{"api"})

	pageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "request_page_duration_seconds",
		Help:    "Page call duration in seconds by API",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"api"})
)
