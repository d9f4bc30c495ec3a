package metrics

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var testCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "metrics_test_events_total",
	Help: "Counter used by the metrics package tests",
})

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should not be nil")
	}

	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestWriteText(t *testing.T) {
	testCounter.Add(3)

	buf := &bytes.Buffer{}
	if err := WriteText(buf, "metrics_test_"); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "metrics_test_events_total 3") {
		t.Errorf("Expected counter sample in output, got %q", output)
	}
	if strings.Contains(output, "go_goroutines") {
		t.Errorf("Expected prefix filter to drop runtime metrics, got %q", output)
	}
}

func TestHasAnyPrefix(t *testing.T) {
	tests := []struct {
		name     string
		prefixes []string
		want     bool
	}{
		{"request_pages_total", nil, true},
		{"request_pages_total", []string{"api_", "request_"}, true},
		{"go_goroutines", []string{"api_", "request_"}, false},
	}

	for _, tt := range tests {
		if got := hasAnyPrefix(tt.name, tt.prefixes); got != tt.want {
			t.Errorf("hasAnyPrefix(%q, %v) = %v, want %v", tt.name, tt.prefixes, got, tt.want)
		}
	}
}
