package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"driftwatch/internal/remediate"
	"driftwatch/pkg/sdk/types"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubCache struct {
	result               *types.ScanResult
	triggered, postponed atomic.Int32
}

func (c *stubCache) Cached() *types.ScanResult { return c.result }
func (c *stubCache) TriggerAsync()             { c.triggered.Add(1) }
func (c *stubCache) Postpone()                 { c.postponed.Add(1) }

type stubRestarter struct {
	mu    sync.Mutex
	units []string
	err   error
}

func (r *stubRestarter) Go(_ context.Context, units []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.units = units
	return nil
}

type stubHistory struct {
	records []types.RestartRecord
	unit    string
	limit   int
}

func (h *stubHistory) ListRestarts(_ context.Context, unit string, limit int) ([]types.RestartRecord, error) {
	h.unit, h.limit = unit, limit
	return h.records, nil
}

func ptr(s string) *string { return &s }

func sampleResult() *types.ScanResult {
	return &types.ScanResult{
		Units: []types.UnitResult{
			{
				Path:   "web/docker-compose.yml",
				Status: types.StatusOutdated,
				Containers: []types.ContainerResult{{
					Name:     "web",
					Service:  "web",
					Image:    "nginx:1.25",
					Status:   types.StatusOutdated,
					Findings: []types.Finding{{Kind: types.FindingImage, Message: "Image differs: expected 'nginx:1.25' but running 'nginx:1.24'"}},
					Ports:    []types.Port{},
					Volumes:  []types.Volume{},
					Labels:   map[string]string{},

					Environment: map[string]*string{"TZ": ptr("UTC"), "DEBUG": nil},
				}},
			},
			{
				Path:   "db/docker-compose.yml",
				Status: types.StatusHealthy,
				Containers: []types.ContainerResult{{
					Name: "db", Service: "db", Image: "postgres:16", Status: types.StatusHealthy,
					Ports: []types.Port{}, Volumes: []types.Volume{}, Labels: map[string]string{},
				}},
			},
		},
		Metadata: types.ScanMetadata{ID: "scan-1", Datetime: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), TimeTakenMS: 1234},
	}
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error errorBody `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error.Code
}

func TestHealth(t *testing.T) {
	rec := do(t, New(Deps{Cache: &stubCache{}}), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK\n" {
		t.Fatalf("GET /health = %d %q, want 200 OK", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatal("missing request id header")
	}
}

func TestGetScanNotReady(t *testing.T) {
	s := New(Deps{Cache: &stubCache{}})
	for _, path := range []string{"/compose", "/compose/outdated"} {
		rec := do(t, s, http.MethodGet, path, "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("GET %s status = %d, want 503", path, rec.Code)
		}
		if code := errorCode(t, rec); code != CodeScanNotReady {
			t.Fatalf("GET %s code = %q, want %q", path, code, CodeScanNotReady)
		}
	}
}

func TestGetScan(t *testing.T) {
	s := New(Deps{Cache: &stubCache{result: sampleResult()}})

	rec := do(t, s, http.MethodGet, "/compose", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /compose status = %d, want 200", rec.Code)
	}

	var raw map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	meta := raw["metadata"].(map[string]any)
	if meta["id"] != "scan-1" || meta["timeTaken"] != float64(1234) {
		t.Fatalf("metadata = %v", meta)
	}
	units := raw["composeFiles"].([]any)
	web := units[0].(map[string]any)["containers"].([]any)[0].(map[string]any)
	details := web["outdatedDetails"].([]any)
	if details[0].(map[string]any)["type"] != "image" {
		t.Fatalf("outdatedDetails = %v", details)
	}
	env := web["environment"].(map[string]any)
	if v, ok := env["DEBUG"]; !ok || v != nil {
		t.Fatalf("environment DEBUG = %v (present %v), want null", v, ok)
	}
	if env["TZ"] != "UTC" {
		t.Fatalf("environment TZ = %v, want UTC", env["TZ"])
	}
	db := units[1].(map[string]any)["containers"].([]any)[0].(map[string]any)
	if _, ok := db["outdatedDetails"]; ok {
		t.Fatalf("healthy container has outdatedDetails: %v", db)
	}

	var got types.ScanResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(sampleResult(), &got); diff != "" {
		t.Fatalf("GET /compose body mismatch (-want +got):\n%s", diff)
	}
}

func TestGetOutdated(t *testing.T) {
	rec := do(t, New(Deps{Cache: &stubCache{result: sampleResult()}}), http.MethodGet, "/compose/outdated", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"composeFiles":["web/docker-compose.yml"]}` {
		t.Fatalf("body = %s", got)
	}
}

func TestTriggerScan(t *testing.T) {
	cache := &stubCache{}
	rec := do(t, New(Deps{Cache: cache}), http.MethodPost, "/compose/scan", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if cache.triggered.Load() != 1 || cache.postponed.Load() != 1 {
		t.Fatalf("triggered=%d postponed=%d, want 1/1", cache.triggered.Load(), cache.postponed.Load())
	}
}

func TestRestartOutdated(t *testing.T) {
	tests := []struct {
		name       string
		cache      *stubCache
		restarter  *stubRestarter
		body       string
		wantStatus int
		wantCode   string
		wantUnits  []string
	}{
		{
			name:       "disabled",
			cache:      &stubCache{result: sampleResult()},
			wantStatus: http.StatusNotFound,
			wantCode:   CodeRestartDisabled,
		},
		{
			name:       "no scan yet",
			cache:      &stubCache{},
			restarter:  &stubRestarter{},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   CodeScanNotReady,
		},
		{
			name:       "outdated units from cache",
			cache:      &stubCache{result: sampleResult()},
			restarter:  &stubRestarter{},
			wantStatus: http.StatusAccepted,
			wantUnits:  []string{"web/docker-compose.yml"},
		},
		{
			name:       "explicit units",
			cache:      &stubCache{},
			restarter:  &stubRestarter{},
			body:       `{"composeFiles":["db/docker-compose.yml"]}`,
			wantStatus: http.StatusAccepted,
			wantUnits:  []string{"db/docker-compose.yml"},
		},
		{
			name:       "busy",
			cache:      &stubCache{result: sampleResult()},
			restarter:  &stubRestarter{err: remediate.ErrBusy},
			wantStatus: http.StatusConflict,
			wantCode:   CodeRestartInProgress,
		},
		{
			name:       "bad body",
			cache:      &stubCache{result: sampleResult()},
			restarter:  &stubRestarter{},
			body:       `{"composeFiles":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeBadRequest,
		},
		{
			name:       "start failure",
			cache:      &stubCache{result: sampleResult()},
			restarter:  &stubRestarter{err: errors.New("boom")},
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := Deps{Cache: tt.cache}
			if tt.restarter != nil {
				deps.Restarter = tt.restarter
			}
			rec := do(t, New(deps), http.MethodPost, "/compose/outdated/restart", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode != "" {
				if code := errorCode(t, rec); code != tt.wantCode {
					t.Fatalf("code = %q, want %q", code, tt.wantCode)
				}
			}
			if tt.wantUnits != nil {
				if diff := cmp.Diff(tt.wantUnits, tt.restarter.units); diff != "" {
					t.Fatalf("restarted units mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestRestartNothingOutdated(t *testing.T) {
	result := sampleResult()
	result.Units = result.Units[1:]
	restarter := &stubRestarter{}
	rec := do(t, New(Deps{Cache: &stubCache{result: result}, Restarter: restarter}), http.MethodPost, "/compose/outdated/restart", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if restarter.units != nil {
		t.Fatalf("restarter called with %v", restarter.units)
	}
}

func TestListRestarts(t *testing.T) {
	history := &stubHistory{records: []types.RestartRecord{{ID: 1, Unit: "web/docker-compose.yml", Host: "nas"}}}
	s := New(Deps{Cache: &stubCache{}, History: history})

	rec := do(t, s, http.MethodGet, "/compose/restarts?path=web/docker-compose.yml&limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if history.unit != "web/docker-compose.yml" || history.limit != 5 {
		t.Fatalf("ListRestarts(%q, %d)", history.unit, history.limit)
	}

	rec = do(t, s, http.MethodGet, "/compose/restarts?limit=zero", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("driftwatch_scans_total 1\n"))
	})
	rec := do(t, New(Deps{Cache: &stubCache{}, Metrics: metrics}), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "driftwatch_scans_total") {
		t.Fatalf("GET /metrics = %d %q", rec.Code, rec.Body.String())
	}
}
