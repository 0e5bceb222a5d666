package httpadapter_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-lightning-bursts/internal/adapter/httpadapter"
	"github.com/couchcryptid/storm-lightning-bursts/internal/analysis"
	"github.com/couchcryptid/storm-lightning-bursts/internal/domain"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockReports struct {
	report *analysis.Report
}

func (m *mockReports) Report() (*analysis.Report, bool) { return m.report, m.report != nil }

func newTestServer(readyErr error, report *analysis.Report) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, &mockReports{report: report}, slog.Default())
}

func get(srv http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func sampleReport() *analysis.Report {
	return &analysis.Report{
		RunID:        "run-42",
		Observations: 12,
		Groups: []analysis.GroupReport{
			{Basin: domain.BasinATL, CategoryGroup: domain.CategoryGroupStrong},
		},
	}
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(newTestServer(nil, nil), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(newTestServer(nil, nil), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(newTestServer(fmt.Errorf("no analysis report produced yet"), nil), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no analysis report produced yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(nil, nil), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestReportReturns503BeforeFirstRun(t *testing.T) {
	rec := get(newTestServer(nil, nil), "/report")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReportReturnsLatestReport(t *testing.T) {
	rec := get(newTestServer(nil, sampleReport()), "/report")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		RunID        string `json:"run_id"`
		Observations int    `json:"observations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-42", body.RunID)
	assert.Equal(t, 12, body.Observations)
}

func TestReportGroup(t *testing.T) {
	srv := newTestServer(nil, sampleReport())

	tests := []struct {
		path string
		want int
	}{
		{"/report/groups/ATL/3-5", http.StatusOK},
		{"/report/groups/ATL/all", http.StatusNotFound},
		{"/report/groups/NATL/all", http.StatusBadRequest},
		{"/report/groups/ATL/2-4", http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.want, get(srv, tc.path).Code)
		})
	}
}
