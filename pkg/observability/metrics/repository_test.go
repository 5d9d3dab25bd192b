package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRepositoryMetrics_Observe(t *testing.T) {
	reg := NewRegistry()
	m, err := NewRepositoryMetrics(reg)
	if err != nil {
		t.Fatalf("NewRepositoryMetrics() error = %v", err)
	}

	m.Observe("gorm", "orders", "AddItem", OutcomeOK, 5*time.Millisecond)
	m.Observe("gorm", "orders", "AddItem", OutcomeOK, 5*time.Millisecond)
	m.Observe("gorm", "orders", "GetByID", OutcomeNotFound, time.Millisecond)

	if got := testutil.ToFloat64(m.operations.WithLabelValues("gorm", "orders", "AddItem", OutcomeOK)); got != 2 {
		t.Errorf("AddItem ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("gorm", "orders", "GetByID", OutcomeNotFound)); got != 1 {
		t.Errorf("GetByID not_found = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.duration); got != 2 {
		t.Errorf("histogram series = %d, want 2", got)
	}
}

func TestRepositoryMetrics_DuplicateRegistration(t *testing.T) {
	reg := NewRegistry()
	if _, err := NewRepositoryMetrics(reg); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if _, err := NewRepositoryMetrics(reg); err == nil {
		t.Fatal("expected error on duplicate registration")
	}
}

func TestRepositoryMetrics_NilIsNoop(t *testing.T) {
	var m *RepositoryMetrics
	m.Observe("gorm", "orders", "AddItem", OutcomeOK, time.Millisecond)
}

func TestRegistry_Handler(t *testing.T) {
	reg := NewRegistry(WithRuntimeCollectors())
	m, err := NewRepositoryMetrics(reg)
	if err != nil {
		t.Fatalf("NewRepositoryMetrics() error = %v", err)
	}
	m.Observe("mongodb", "people", "GetPaging", OutcomeOK, time.Millisecond)

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{"repository_operations_total", "repository_operation_duration_seconds", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestRegistry_Counters(t *testing.T) {
	reg := NewRegistry()
	m, err := NewRepositoryMetrics(reg)
	if err != nil {
		t.Fatalf("NewRepositoryMetrics() error = %v", err)
	}
	m.Observe("mongodb", "people", "GetPaging", OutcomeOK, time.Millisecond)
	m.Observe("mongodb", "people", "Count", OutcomeOK, time.Millisecond)
	m.Observe("mongodb", "people", "Count", OutcomeOK, time.Millisecond)

	samples, err := reg.Counters("repository_operations_total")
	if err != nil {
		t.Fatalf("Counters() error = %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 series, got %d", len(samples))
	}
	if samples[0].Labels["operation"] != "Count" || samples[0].Value != 2 {
		t.Errorf("first sample = %+v", samples[0])
	}
	if samples[1].Labels["operation"] != "GetPaging" || samples[1].Value != 1 {
		t.Errorf("second sample = %+v", samples[1])
	}

	if samples, err := reg.Counters("repository_operation_duration_seconds"); err != nil || len(samples) != 0 {
		t.Errorf("histogram family must yield no counter samples, got %v, %v", samples, err)
	}
	if NewRegistry().Gatherer() == nil {
		t.Fatal("expected a gatherer")
	}
}
