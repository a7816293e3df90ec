package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vislab/vislog/internal/collector"
	"github.com/vislab/vislog/internal/models"
)

func setupTestServer(t *testing.T) (*Server, *collector.Store) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "vislog-server-test-*")
	require.NoError(t, err)

	store, err := collector.NewStore(filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
		os.RemoveAll(tmpDir)
	})
	return NewServer(store, "127.0.0.1:0"), store
}

func postBatch(t *testing.T, srv *Server, body []byte) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/log", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Routes().ServeHTTP(w, req)
	return w.Result()
}

func TestHandleHealthz(t *testing.T) {
	srv, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Routes().ServeHTTP(w, req)

	resp := w.Result()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", w.Body.String())
}

func TestHandleLogSuccess(t *testing.T) {
	srv, _ := setupTestServer(t)

	batch := models.Batch{
		UserID: "user1",
		TaskID: "task1",
		Log: []models.InteractionRecord{
			{View: "chart1", Name: models.KindMouseEnter, Timestamp: 1234567890},
		},
		LogFields: models.DefaultLogFields,
		MouseLog: []models.PointerRecord{
			{Name: models.KindMouse, Timestamp: 1234567891, PageX: 5, PageY: 6},
		},
		MouseLogFields: models.DefaultMouseLogFields,
	}
	jsonData, err := json.Marshal(batch)
	require.NoError(t, err)

	resp := postBatch(t, srv, jsonData)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestHandleLogMethodNotAllowed(t *testing.T) {
	srv, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/log", nil)
	w := httptest.NewRecorder()
	srv.Routes().ServeHTTP(w, req)

	require.Equal(t, http.StatusMethodNotAllowed, w.Result().StatusCode)
}

func TestHandleLogInvalidJSON(t *testing.T) {
	srv, _ := setupTestServer(t)

	resp := postBatch(t, srv, []byte(`{"log": [invalid json]}`))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleLogEmptyBatch(t *testing.T) {
	srv, _ := setupTestServer(t)

	batch := models.Batch{
		Log:            []models.InteractionRecord{},
		LogFields:      models.DefaultLogFields,
		MouseLog:       []models.PointerRecord{},
		MouseLogFields: models.DefaultMouseLogFields,
	}
	jsonData, err := json.Marshal(batch)
	require.NoError(t, err)

	resp := postBatch(t, srv, jsonData)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestHandleLogInvalidRecord(t *testing.T) {
	srv, _ := setupTestServer(t)

	batch := models.Batch{
		Log: []models.InteractionRecord{
			{View: "chart1", Name: "scroll", Timestamp: 1},
		},
		LogFields:      models.DefaultLogFields,
		MouseLogFields: models.DefaultMouseLogFields,
	}
	jsonData, err := json.Marshal(batch)
	require.NoError(t, err)

	resp := postBatch(t, srv, jsonData)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
