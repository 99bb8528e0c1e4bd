package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebook/posting-engine/api"
	"github.com/sitebook/posting-engine/store/sqlite"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(api.NewServer(store, nil).Router())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestDocumentLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	// Seed the demo scenario
	var seed struct {
		ObjectID    int64   `json:"object_id"`
		WorkIDs     []int64 `json:"work_ids"`
		EmployeeIDs []int64 `json:"employee_ids"`
		EstimateID  int64   `json:"estimate_id"`
	}
	resp := doJSON(t, srv, http.MethodPost, "/api/seed", nil, &seed)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotZero(t, seed.EstimateID)

	// Post the estimate
	var posted struct {
		WorkExecutionRows int `json:"work_execution_rows"`
	}
	postPath := fmt.Sprintf("/api/documents/estimate/%d/post", seed.EstimateID)
	resp = doJSON(t, srv, http.MethodPost, postPath, nil, &posted)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, posted.WorkExecutionRows) // three work rows, two group rows skipped

	// Posting again conflicts
	var errResp struct {
		Kind string `json:"kind"`
	}
	resp = doJSON(t, srv, http.MethodPost, postPath, nil, &errResp)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "state", errResp.Kind)

	// The balance reflects the posted plan
	var balances []struct {
		WorkID          int64  `json:"work_id"`
		BalanceQuantity string `json:"balance_quantity"`
	}
	resp = doJSON(t, srv, http.MethodGet,
		fmt.Sprintf("/api/estimates/%d/work-balance", seed.EstimateID), nil, &balances)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, balances, 3)

	// A posted document cannot be deleted
	resp = doJSON(t, srv, http.MethodDelete,
		fmt.Sprintf("/api/documents/estimate/%d", seed.EstimateID), nil, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Unpost, then delete succeeds
	resp = doJSON(t, srv, http.MethodPost,
		fmt.Sprintf("/api/documents/estimate/%d/unpost", seed.EstimateID), nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodDelete,
		fmt.Sprintf("/api/documents/estimate/%d", seed.EstimateID), nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodGet,
		fmt.Sprintf("/api/documents/estimate/%d", seed.EstimateID), nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTimesheetConflictOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	var seed struct {
		ObjectID    int64   `json:"object_id"`
		EmployeeIDs []int64 `json:"employee_ids"`
		EstimateID  int64   `json:"estimate_id"`
	}
	doJSON(t, srv, http.MethodPost, "/api/seed", nil, &seed)
	doJSON(t, srv, http.MethodPost,
		fmt.Sprintf("/api/documents/estimate/%d/post", seed.EstimateID), nil, nil)

	makeTimesheet := func(number string, hours map[string]string) map[string]any {
		return map[string]any{
			"number":      number,
			"date":        "2026-03-01",
			"object_id":   seed.ObjectID,
			"estimate_id": seed.EstimateID,
			"lines": []map[string]any{
				{"line_no": 1, "employee_id": seed.EmployeeIDs[0], "hourly_rate": "25", "hours": hours},
			},
		}
	}

	var created struct {
		ID int64 `json:"id"`
	}
	resp := doJSON(t, srv, http.MethodPost, "/api/timesheets",
		makeTimesheet("TS-001", map[string]string{"2": "8"}), &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = doJSON(t, srv, http.MethodPost,
		fmt.Sprintf("/api/documents/timesheet/%d/post", created.ID), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// A second timesheet booking the same employee on the same day
	var second struct {
		ID int64 `json:"id"`
	}
	doJSON(t, srv, http.MethodPost, "/api/timesheets",
		makeTimesheet("TS-002", map[string]string{"2": "4"}), &second)

	var errResp struct {
		Kind string `json:"kind"`
	}
	resp = doJSON(t, srv, http.MethodPost,
		fmt.Sprintf("/api/documents/timesheet/%d/post", second.ID), nil, &errResp)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "conflict", errResp.Kind)

	// Payroll summary covers only the committed booking
	var summary []struct {
		EmployeeID int64  `json:"employee_id"`
		TotalHours string `json:"total_hours"`
	}
	resp = doJSON(t, srv, http.MethodGet, "/api/payroll/summary?period=2026-03", nil, &summary)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, summary, 1)
	assert.Equal(t, seed.EmployeeIDs[0], summary[0].EmployeeID)
	assert.Equal(t, "8", summary[0].TotalHours)
}

func TestValidationErrorsOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	// Unknown document type in the path
	resp := doJSON(t, srv, http.MethodPost, "/api/documents/invoice/1/post", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown document id
	resp = doJSON(t, srv, http.MethodPost, "/api/documents/estimate/999/post", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Malformed period
	resp = doJSON(t, srv, http.MethodGet, "/api/payroll/summary?period=March", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Estimate referencing a missing work fails posting with 400
	var created struct {
		ID int64 `json:"id"`
	}
	doJSON(t, srv, http.MethodPost, "/api/estimates", map[string]any{
		"number":    "EST-BAD",
		"date":      "2026-03-10",
		"object_id": 1,
		"lines": []map[string]any{
			{"line_no": 1, "work_id": 12345, "quantity": "10", "price": "5"},
		},
	}, &created)
	resp = doJSON(t, srv, http.MethodPost,
		fmt.Sprintf("/api/documents/estimate/%d/post", created.ID), nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCatalogEndpoints(t *testing.T) {
	srv := newTestServer(t)

	var work struct {
		ID int64 `json:"ID"`
	}
	resp := doJSON(t, srv, http.MethodPost, "/api/catalog/works",
		map[string]string{"name": "Excavation", "unit": "m3"}, &work)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotZero(t, work.ID)

	var works []struct {
		Name string `json:"Name"`
	}
	resp = doJSON(t, srv, http.MethodGet, "/api/catalog/works", nil, &works)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, works, 1)
	assert.Equal(t, "Excavation", works[0].Name)

	// Missing name is rejected
	resp = doJSON(t, srv, http.MethodPost, "/api/catalog/employees", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
