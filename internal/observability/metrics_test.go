package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics("test")

	m.RecordBacktest("simulate", 10*time.Millisecond, nil)
	m.RecordBacktest("simulate", 10*time.Millisecond, errors.New("boom"))
	m.RecordCacheLookup("simulate", true)
	m.RecordCacheLookup("simulate", false)
	m.RecordCacheLookup("simulate", false)
	m.RecordMonteCarloPaths(1000)
	m.RecordRefresh(true, map[string]int{"index": 3, "fx": 2})

	if got := testutil.ToFloat64(m.BacktestRuns.WithLabelValues("simulate", "ok")); got != 1 {
		t.Errorf("Expected 1 successful run, got %v", got)
	}
	if got := testutil.ToFloat64(m.BacktestRuns.WithLabelValues("simulate", "error")); got != 1 {
		t.Errorf("Expected 1 failed run, got %v", got)
	}
	if got := testutil.ToFloat64(m.CacheMisses.WithLabelValues("simulate")); got != 2 {
		t.Errorf("Expected 2 cache misses, got %v", got)
	}
	if got := testutil.ToFloat64(m.MonteCarloPaths); got != 1000 {
		t.Errorf("Expected 1000 paths, got %v", got)
	}
	if got := testutil.ToFloat64(m.RefreshPointsAdded.WithLabelValues("index")); got != 3 {
		t.Errorf("Expected 3 index points, got %v", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	m.RecordBacktest("simulate", time.Second, nil)
	m.RecordHTTPRequest("/api/system/health", http.MethodGet, http.StatusOK, time.Second)
	m.RecordCacheLookup("simulate", true)
	m.SetCacheEntries(3)
	m.RecordRefresh(false, nil)
}

func TestMetrics_InstancesAreIndependent(t *testing.T) {
	a := NewMetrics("test")
	b := NewMetrics("test")

	a.RecordMonteCarloPaths(5)

	if got := testutil.ToFloat64(b.MonteCarloPaths); got != 0 {
		t.Errorf("Expected separate registries, got %v on second instance", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics("test")
	m.RecordHTTPRequest("/api/backtest/simulate", http.MethodPost, http.StatusOK, 20*time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), `test_http_requests_total{method="POST",route="/api/backtest/simulate",status="200"} 1`) {
		t.Errorf("Expected request counter in exposition, got:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("Expected Go runtime metrics in exposition")
	}
}
