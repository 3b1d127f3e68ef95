// internal/api/handlers.go
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	commonerrors "kaya-concierge/internal/common/errors"
	"kaya-concierge/internal/common/logger"
	"kaya-concierge/internal/common/metrics"
	"kaya-concierge/internal/common/validation"
	"kaya-concierge/internal/engine"
	"kaya-concierge/internal/export"
	"kaya-concierge/internal/models"
	"kaya-concierge/internal/store"

	"github.com/go-chi/chi/v5"
)

// ==========================
// Request Schemas
// ==========================

func intPtr(i int) *int { return &i }

var registerSchema = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"name":   {Type: "string", Description: "Visitor full name", MinLength: intPtr(1)},
		"email":  {Type: "string", Description: "Contact email", MinLength: intPtr(1)},
		"mobile": {Type: "string", Description: "Contact mobile number", MinLength: intPtr(1)},
	},
	Required: []string{"name", "email", "mobile"},
}

var turnSchema = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"text": {Type: "string", Description: "User utterance or choice label", MinLength: intPtr(1)},
	},
	Required: []string{"text"},
}

var statusSchema = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"status": {Type: "string", Description: "Operator status value"},
	},
	Required: []string{"status"},
}

// ==========================
// Handlers
// ==========================

type Handlers struct {
	engine   *engine.Engine
	store    store.LeadStore
	exporter *export.Exporter
	logger   logger.Logger
}

func NewHandlers(eng *engine.Engine, leadStore store.LeadStore, exporter *export.Exporter, log logger.Logger) *Handlers {
	return &Handlers{
		engine:   eng,
		store:    leadStore,
		exporter: exporter,
		logger:   log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

type registerResponse struct {
	SessionID int64    `json:"sessionId"`
	Prompt    string   `json:"prompt"`
	Choices   []string `json:"choices"`
}

// Register creates a lead and opens its conversation.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeBody(r, registerSchema)
	if err != nil {
		h.writeError(w, err)
		return
	}

	contact := models.Contact{
		Name:   strings.TrimSpace(raw["name"].(string)),
		Email:  strings.TrimSpace(raw["email"].(string)),
		Mobile: strings.TrimSpace(raw["mobile"].(string)),
	}
	if contact.Name == "" || contact.Email == "" || contact.Mobile == "" {
		h.writeError(w, commonerrors.NewValidationFailedError("name, email, and mobile must be non-empty"))
		return
	}
	if !validation.ValidateEmail(contact.Email) {
		h.logger.Warn("registration email looks unusual", map[string]interface{}{
			"email": contact.Email,
		})
	}

	lead, err := h.store.Create(r.Context(), contact)
	if err != nil {
		h.writeError(w, commonerrors.NewPersistenceFailedError(err))
		return
	}
	metrics.LeadsCreated.Inc()

	result, err := h.engine.Start(r.Context(), lead.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, registerResponse{
		SessionID: lead.ID,
		Prompt:    result.Prompt,
		Choices:   result.Choices,
	})
}

type turnResponse struct {
	Transcript  []models.Message `json:"transcript"`
	CurrentStep string           `json:"currentStep"`
	Choices     []string         `json:"choices"`
}

// Turn advances the conversation by one user utterance.
func (h *Handlers) Turn(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	raw, err := decodeBody(r, turnSchema)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.engine.Advance(r.Context(), id, raw["text"].(string))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, turnResponse{
		Transcript:  transcriptTail(result.Transcript, 2),
		CurrentStep: string(result.Step),
		Choices:     result.Choices,
	})
}

// UpdateStatus sets the operator-facing status of a lead.
func (h *Handlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	raw, err := decodeBody(r, statusSchema)
	if err != nil {
		h.writeError(w, err)
		return
	}

	status, err := models.ParseStatus(raw["status"].(string))
	if err != nil {
		h.writeError(w, commonerrors.NewInvalidStatusError(raw["status"].(string)))
		return
	}

	if err := h.store.UpdateStatus(r.Context(), id, status); err != nil {
		if errors.Is(err, store.ErrLeadNotFound) {
			h.writeError(w, commonerrors.NewSessionNotFoundError(id))
			return
		}
		h.writeError(w, commonerrors.NewPersistenceFailedError(err))
		return
	}
	metrics.StatusUpdates.WithLabelValues(string(status)).Inc()

	w.WriteHeader(http.StatusNoContent)
}

// ListLeads returns every lead for the operator view.
func (h *Handlers) ListLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := h.store.ListAll(r.Context())
	if err != nil {
		h.writeError(w, commonerrors.NewPersistenceFailedError(err))
		return
	}
	if leads == nil {
		leads = []*models.Lead{}
	}
	h.writeJSON(w, http.StatusOK, leads)
}

// GetLead returns a single lead by id.
func (h *Handlers) GetLead(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	lead, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrLeadNotFound) {
			h.writeError(w, commonerrors.NewSessionNotFoundError(id))
			return
		}
		h.writeError(w, commonerrors.NewPersistenceFailedError(err))
		return
	}
	h.writeJSON(w, http.StatusOK, lead)
}

// ExportCSV serves the operator report as a CSV attachment. The report is
// rendered into a buffer first so a store failure surfaces as an error
// response instead of a truncated or empty file.
func (h *Handlers) ExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.exporter.WriteCSV(r.Context(), &buf); err != nil {
		h.logger.Error("export failed", map[string]interface{}{
			"error": err.Error(),
		})
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="leads.csv"`)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("export write failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Health reports process liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// ==========================
// Helpers
// ==========================

func sessionID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, commonerrors.NewValidationFailedError("session id must be a positive integer")
	}
	return id, nil
}

// decodeBody parses the JSON body and checks it against the schema. String
// fields the schema names are guaranteed present and typed on success.
func decodeBody(r *http.Request, schema validation.JSONSchema) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, commonerrors.NewValidationFailedError("request body must be a JSON object")
	}

	result := validation.ValidateInput(raw, schema)
	if !result.Valid {
		return nil, commonerrors.NewValidationFailedError(strings.Join(result.GetErrorMessages(), "; "))
	}
	return raw, nil
}

func transcriptTail(transcript []models.Message, n int) []models.Message {
	if len(transcript) <= n {
		return transcript
	}
	return transcript[len(transcript)-n:]
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response encoding failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	stdErr := commonerrors.Normalize(err)
	h.writeJSON(w, commonerrors.HTTPStatus(stdErr.Code), errorResponse{
		Code:    string(stdErr.Code),
		Message: stdErr.Message,
		Details: stdErr.Details,
	})
}
