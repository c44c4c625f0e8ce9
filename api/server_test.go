package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"booking-recon/internal/fixtures"
	"booking-recon/pkg/api"
)

func testServer() *Server {
	return NewServer(nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func postReconcile(t *testing.T, s *Server, req ReconcileRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.handleReconcile(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reconcile", bytes.NewReader(body)))
	return rec
}

func TestHandleReconcile(t *testing.T) {
	ds := fixtures.NewGenerator(fixtures.Config{Seed: 42, Bookings: 50, TestBookings: 2, PhoneBookings: 5}).Generate()

	rec := postReconcile(t, testServer(), ReconcileRequest{
		AnalyticsEvents:  ds.Analytics,
		CrmOpportunities: ds.Crm,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ReconcileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RunID)
	require.NotNil(t, resp.Summary)
	require.Equal(t, resp.Summary.TotalRows, resp.Rows)
	require.Equal(t, 2, resp.Quality.SyntheticTests)
}

func TestHandleReconcile_EmptyArrays(t *testing.T) {
	rec := postReconcile(t, testServer(), ReconcileRequest{
		AnalyticsEvents:  []api.AnalyticsRawEvent{},
		CrmOpportunities: []api.CrmRawOpportunity{},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ReconcileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 0, resp.Rows)
}

func TestHandleReconcile_MissingSides(t *testing.T) {
	rec := postReconcile(t, testServer(), ReconcileRequest{
		AnalyticsEvents: []api.AnalyticsRawEvent{},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleReconcile_BadThreshold(t *testing.T) {
	rec := postReconcile(t, testServer(), ReconcileRequest{
		AnalyticsEvents:   []api.AnalyticsRawEvent{},
		CrmOpportunities:  []api.CrmRawOpportunity{},
		LowValueThreshold: "not-a-number",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleReconcile_StrictMalformed(t *testing.T) {
	bad := api.AnalyticsRawEvent{
		UserPseudoID: "user_1",
		EventParams: []api.EventParam{
			{Key: api.ParamTransactionID, Value: api.ParamValueVariant{}},
		},
	}
	rec := postReconcile(t, testServer(), ReconcileRequest{
		AnalyticsEvents:  []api.AnalyticsRawEvent{bad},
		CrmOpportunities: []api.CrmRawOpportunity{},
		Strict:           true,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleReconcile_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	testServer().handleReconcile(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reconcile", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	testServer().handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleReady_NoWarehouse(t *testing.T) {
	rec := httptest.NewRecorder()
	testServer().handleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSMiddleware(t *testing.T) {
	s := testServer()
	handler := s.corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/reconcile", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("disallowed origin gets no header", func(t *testing.T) {
		s.config.CORSOrigins = []string{"https://ops.internal"}
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
