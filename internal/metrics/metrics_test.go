package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"driftwatch/pkg/sdk/types"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestScanCompletedSetsStatusGauges(t *testing.T) {
	m := New()
	result := &types.ScanResult{
		Units: []types.UnitResult{
			{Path: "a", Status: types.StatusHealthy, Containers: []types.ContainerResult{{Status: types.StatusHealthy}}},
			{Path: "b", Status: types.StatusOutdated, Containers: []types.ContainerResult{
				{Status: types.StatusOutdated},
				{Status: types.StatusUp},
			}},
		},
		Metadata: types.ScanMetadata{Datetime: time.Unix(1700000000, 0)},
	}

	m.ScanStarted()
	m.ScanCompleted(result, 2*time.Second)

	if got := testutil.ToFloat64(m.units.WithLabelValues("Outdated")); got != 1 {
		t.Fatalf("units{Outdated} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.containers.WithLabelValues("Up")); got != 1 {
		t.Fatalf("containers{Up} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.containers.WithLabelValues("Down")); got != 0 {
		t.Fatalf("containers{Down} = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.scansTotal.WithLabelValues("success")); got != 1 {
		t.Fatalf("scans_total{success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.lastScan); got != 1700000000 {
		t.Fatalf("last_scan_timestamp_seconds = %v, want 1700000000", got)
	}
	if got := testutil.ToFloat64(m.scanInFlight); got != 0 {
		t.Fatalf("scan_in_flight = %v, want 0", got)
	}
}

func TestScanFailedAndRestart(t *testing.T) {
	m := New()
	m.ScanFailed(errors.New("boom"), time.Second)
	m.RestartFinished(types.RestartTiming{Unit: "a", Pull: time.Second, Restart: 2 * time.Second})
	m.RestartFinished(types.RestartTiming{Unit: "b", Error: "pull failed"})

	if got := testutil.ToFloat64(m.scansTotal.WithLabelValues("failure")); got != 1 {
		t.Fatalf("scans_total{failure} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.restartsTotal.WithLabelValues("failure")); got != 1 {
		t.Fatalf("restarts_total{failure} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.restartsTotal.WithLabelValues("success")); got != 1 {
		t.Fatalf("restarts_total{success} = %v, want 1", got)
	}
}

func TestScanDiscardedLeavesGaugesAlone(t *testing.T) {
	m := New()
	m.ScanStarted()
	m.ScanCompleted(&types.ScanResult{
		Units:    []types.UnitResult{{Path: "a", Status: types.StatusHealthy}},
		Metadata: types.ScanMetadata{Datetime: time.Unix(1700000000, 0)},
	}, time.Second)
	m.ScanStarted()
	m.ScanDiscarded(time.Second)

	if got := testutil.ToFloat64(m.scanInFlight); got != 0 {
		t.Fatalf("scan_in_flight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.scansTotal.WithLabelValues("stale")); got != 1 {
		t.Fatalf("scans_total{stale} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.units.WithLabelValues("Healthy")); got != 1 {
		t.Fatalf("units{Healthy} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.lastScan); got != 1700000000 {
		t.Fatalf("last_scan_timestamp_seconds = %v, want 1700000000", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ScanFailed(errors.New("boom"), time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if body := rec.Body.String(); !strings.Contains(body, `driftwatch_scans_total{outcome="failure"} 1`) {
		t.Fatalf("exposition missing scans_total, got:\n%s", body)
	}
}
