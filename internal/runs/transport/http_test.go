package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/delegation-deployments/internal/runs/domain"
)

// mockService implements Service for testing
type mockService struct {
	runs       map[string]*domain.Run
	triggerErr error
	lastFilter domain.ListFilter
	triggered  []string
}

func newMockService() *mockService {
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &mockService{
		runs: map[string]*domain.Run{
			"5d2c6a8e-7f0b-4a53-9d1e-2b4f6c8a0e13": {
				ID:          "5d2c6a8e-7f0b-4a53-9d1e-2b4f6c8a0e13",
				Version:     "1.3.0",
				Passed:      true,
				TriggeredBy: domain.TriggerCLI,
				StartedAt:   started,
				FinishedAt:  started.Add(2 * time.Second),
				Chains: []domain.ChainRun{
					{ChainID: 1, Name: "Ethereum", Status: "passed", Contracts: []domain.ContractRun{
						{Name: "EntryPoint", Address: "0x0000000071727De22E5E9d8BAf0edAc6f37da032", Status: "passed"},
					}},
				},
			},
		},
	}
}

func (m *mockService) Trigger(ctx context.Context, version, triggeredBy string) (*domain.Run, error) {
	if m.triggerErr != nil {
		return nil, m.triggerErr
	}
	m.triggered = append(m.triggered, version)
	if version == "" {
		version = "1.3.0"
	}
	return &domain.Run{ID: "new-run", Version: version, Passed: true, TriggeredBy: triggeredBy}, nil
}

func (m *mockService) Get(ctx context.Context, id string) (*domain.Run, error) {
	if run, ok := m.runs[id]; ok {
		return run, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockService) List(ctx context.Context, filter domain.ListFilter, pagination domain.PaginationParams) (*domain.ListResult, error) {
	m.lastFilter = filter
	if pagination.Cursor == "bad" {
		return nil, domain.ErrInvalidCursor
	}
	var runs []domain.Run
	for _, r := range m.runs {
		run := *r
		run.Chains = nil
		runs = append(runs, run)
	}
	return &domain.ListResult{Runs: runs}, nil
}

func (m *mockService) Latest(ctx context.Context, version string) (*domain.Run, error) {
	for _, r := range m.runs {
		if version == "" || r.Version == version {
			return r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func setupRouter(svc Service) *chi.Mux {
	h := NewHandler(svc)
	r := chi.NewRouter()
	r.Route("/runs", func(r chi.Router) {
		h.RegisterReadRoutes(r)
		h.RegisterWriteRoutes(r)
	})
	return r
}

func TestListRuns(t *testing.T) {
	svc := newMockService()
	r := setupRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/runs?version=1.3.0&passed=true", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data       []RunResponse  `json:"data"`
		Pagination map[string]any `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "1.3.0", resp.Data[0].Version)
	assert.Equal(t, int64(2000), resp.Data[0].DurationMS)
	assert.Equal(t, float64(20), resp.Pagination["limit"])

	assert.Equal(t, "1.3.0", svc.lastFilter.Version)
	require.NotNil(t, svc.lastFilter.Passed)
	assert.True(t, *svc.lastFilter.Passed)
}

func TestListRunsBadRequest(t *testing.T) {
	r := setupRouter(newMockService())

	for _, target := range []string{"/runs?passed=maybe", "/runs?cursor=bad"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestGetRun(t *testing.T) {
	r := setupRouter(newMockService())

	req := httptest.NewRequest(http.MethodGet, "/runs/5d2c6a8e-7f0b-4a53-9d1e-2b4f6c8a0e13", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Chains, 1)
	assert.Equal(t, "EntryPoint", resp.Chains[0].Contracts[0].Name)

	req = httptest.NewRequest(http.MethodGet, "/runs/missing", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestLatestRun(t *testing.T) {
	r := setupRouter(newMockService())

	req := httptest.NewRequest(http.MethodGet, "/runs/latest", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/runs/latest?version=1.0.0", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerRun(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		triggerErr error
		wantStatus int
		wantCode   string
	}{
		{name: "empty body", body: "", wantStatus: http.StatusCreated},
		{name: "explicit version", body: `{"version":"1.1.0"}`, wantStatus: http.StatusCreated},
		{name: "invalid json", body: `{`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_REQUEST"},
		{name: "invalid version", body: `{"version":"x"}`, triggerErr: domain.ErrInvalidVersion, wantStatus: http.StatusBadRequest, wantCode: "INVALID_REQUEST"},
		{name: "in progress", triggerErr: domain.ErrRunInProgress, wantStatus: http.StatusConflict, wantCode: "RUN_IN_PROGRESS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newMockService()
			svc.triggerErr = tt.triggerErr
			r := setupRouter(svc)

			req := httptest.NewRequest(http.MethodPost, "/runs", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Contains(t, rec.Body.String(), tt.wantCode)
				return
			}

			var resp RunResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, domain.TriggerAPI, resp.TriggeredBy)
		})
	}
}
