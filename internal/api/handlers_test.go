// internal/api/handlers_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"kaya-concierge/internal/common/logger"
	"kaya-concierge/internal/engine"
	"kaya-concierge/internal/export"
	"kaya-concierge/internal/models"
	"kaya-concierge/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type testServer struct {
	router http.Handler
	store  *store.MemoryLeadStore
}

// failingListStore simulates a store outage during export.
type failingListStore struct {
	store.LeadStore
}

func (s *failingListStore) ListAll(context.Context) ([]*models.Lead, error) {
	return nil, errors.New("connection refused")
}

func createTestServer(t *testing.T) *testServer {
	leadStore := store.NewMemoryLeadStore()
	log := logger.NewTestLogger(t)
	eng := engine.NewEngine(leadStore, nil, log)
	exporter := export.NewExporter(leadStore, log)
	handlers := NewHandlers(eng, leadStore, exporter, log)
	return &testServer{
		router: NewRouter(handlers, log),
		store:  leadStore,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, name, email, mobile string) int64 {
	rec := s.do(t, http.MethodPost, "/api/register", map[string]string{
		"name": name, "email": email, "mobile": mobile,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		SessionID int64 `json:"sessionId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.SessionID
}

func (s *testServer) turn(t *testing.T, id int64, text string) (int, map[string]interface{}) {
	rec := s.do(t, http.MethodPost, fmt.Sprintf("/api/sessions/%d/turns", id), map[string]string{"text": text})
	var resp map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec.Code, resp
}

// ==========================
// Registration Tests
// ==========================

func TestRegister(t *testing.T) {
	t.Run("creates lead and returns greeting", func(t *testing.T) {
		s := createTestServer(t)

		rec := s.do(t, http.MethodPost, "/api/register", map[string]string{
			"name": "Fatima", "email": "fatima@example.com", "mobile": "1",
		})

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp struct {
			SessionID int64    `json:"sessionId"`
			Prompt    string   `json:"prompt"`
			Choices   []string `json:"choices"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(1), resp.SessionID)
		assert.Contains(t, resp.Prompt, "Welcome, Fatima")
		assert.Equal(t, []string{"Yes, I'm looking!", "Just browsing"}, resp.Choices)
	})

	t.Run("rejects missing fields without creating a record", func(t *testing.T) {
		tests := []map[string]string{
			{"email": "a@x.com", "mobile": "1"},
			{"name": "A", "mobile": "1"},
			{"name": "A", "email": "a@x.com"},
			{"name": "", "email": "a@x.com", "mobile": "1"},
		}
		for _, body := range tests {
			s := createTestServer(t)

			rec := s.do(t, http.MethodPost, "/api/register", body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "VALIDATION_FAILED", resp["code"])

			leads, err := s.store.ListAll(req(t))
			require.NoError(t, err)
			assert.Empty(t, leads, "no record for body %v", body)
		}
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		s := createTestServer(t)
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewBufferString("{not json"))
		s.router.ServeHTTP(rec, r)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// ==========================
// Turn Tests
// ==========================

func TestTurn_FullScenario(t *testing.T) {
	s := createTestServer(t)
	id := s.register(t, "A", "a@x.com", "1")

	turns := []struct {
		text     string
		wantStep string
	}{
		{"Yes, I'm looking!", "unit"},
		{"2BR or 3BR", "purpose"},
		{"Buy", "budget"},
		{"1.5M-3M", "area"},
		{"Marina", "qanda"},
	}

	for _, tt := range turns {
		code, resp := s.turn(t, id, tt.text)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, tt.wantStep, resp["currentStep"], "after %q", tt.text)

		// The tail is the user's message plus the next prompt.
		tail := resp["transcript"].([]interface{})
		require.Len(t, tail, 2)
		first := tail[0].(map[string]interface{})
		assert.Equal(t, "user", first["role"])
		assert.Equal(t, tt.text, first["content"])
	}

	code, resp := s.turn(t, id, "Talk to an agent")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "closing", resp["currentStep"])
	assert.Empty(t, resp["choices"])

	lead, err := s.store.Get(req(t), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, lead.Status)
}

func TestTurn_Errors(t *testing.T) {
	s := createTestServer(t)

	t.Run("unknown session", func(t *testing.T) {
		code, resp := s.turn(t, 99, "hello")
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "SESSION_NOT_FOUND", resp["code"])
	})

	t.Run("non-numeric session id", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/sessions/abc/turns", map[string]string{"text": "hello"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty text", func(t *testing.T) {
		id := s.register(t, "A", "a@x.com", "1")
		code, resp := s.turn(t, id, "")
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "VALIDATION_FAILED", resp["code"])
	})
}

// ==========================
// Status Tests
// ==========================

func TestUpdateStatus(t *testing.T) {
	t.Run("accepts enum values", func(t *testing.T) {
		s := createTestServer(t)
		id := s.register(t, "A", "a@x.com", "1")

		for _, status := range models.AllStatuses {
			rec := s.do(t, http.MethodPut, fmt.Sprintf("/api/sessions/%d/status", id), map[string]string{
				"status": string(status),
			})
			require.Equal(t, http.StatusNoContent, rec.Code)

			lead, err := s.store.Get(req(t), id)
			require.NoError(t, err)
			assert.Equal(t, status, lead.Status)
		}
	})

	t.Run("rejects out-of-enum value and keeps stored status", func(t *testing.T) {
		s := createTestServer(t)
		id := s.register(t, "A", "a@x.com", "1")

		rec := s.do(t, http.MethodPut, fmt.Sprintf("/api/sessions/%d/status", id), map[string]string{
			"status": "Archived",
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "INVALID_STATUS", resp["code"])

		lead, err := s.store.Get(req(t), id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, lead.Status)
	})

	t.Run("unknown session", func(t *testing.T) {
		s := createTestServer(t)
		rec := s.do(t, http.MethodPut, "/api/sessions/99/status", map[string]string{
			"status": "Success",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

// ==========================
// Operator View Tests
// ==========================

func TestListAndGetLeads(t *testing.T) {
	s := createTestServer(t)
	id1 := s.register(t, "A", "a@x.com", "1")
	id2 := s.register(t, "B", "b@x.com", "2")

	rec := s.do(t, http.MethodGet, "/api/leads", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var leads []models.Lead
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &leads))
	require.Len(t, leads, 2)
	assert.Equal(t, id1, leads[0].ID)
	assert.Equal(t, id2, leads[1].ID)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/leads/%d", id2), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var lead models.Lead
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lead))
	assert.Equal(t, "B", lead.Contact.Name)

	rec = s.do(t, http.MethodGet, "/api/leads/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportCSV(t *testing.T) {
	s := createTestServer(t)
	id := s.register(t, "Fatima", "fatima@example.com", "1")
	for _, text := range []string{"Yes, I'm looking!", "Villa"} {
		code, _ := s.turn(t, id, text)
		require.Equal(t, http.StatusOK, code)
	}

	rec := s.do(t, http.MethodGet, "/api/export", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "leads.csv")
	body := rec.Body.String()
	assert.Contains(t, body, "name,Email ID,Mobile Number,Description,Status")
	assert.Contains(t, body, "Fatima,fatima@example.com,1,Villa in Dubai,Pending")
}

func TestExportCSV_StoreFailure(t *testing.T) {
	leadStore := &failingListStore{LeadStore: store.NewMemoryLeadStore()}
	log := logger.NewTestLogger(t)
	eng := engine.NewEngine(leadStore, nil, log)
	handlers := NewHandlers(eng, leadStore, export.NewExporter(leadStore, log), log)
	router := NewRouter(handlers, log)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/export", nil))

	// A store outage must not look like an empty report.
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEqual(t, "text/csv", rec.Header().Get("Content-Type"))
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "EXPORT_FAILED", resp["code"])
}

func TestHealth(t *testing.T) {
	s := createTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

// req returns a context for direct store access in assertions.
func req(t *testing.T) context.Context {
	t.Helper()
	return context.Background()
}
