// internal/engine/engine_test.go
package engine

import (
	"context"
	"errors"
	"testing"

	commonerrors "kaya-concierge/internal/common/errors"
	"kaya-concierge/internal/common/logger"
	"kaya-concierge/internal/flow"
	"kaya-concierge/internal/models"
	"kaya-concierge/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestEngine(t *testing.T, leadStore store.LeadStore) *Engine {
	return NewEngine(leadStore, nil, logger.NewTestLogger(t))
}

func registerLead(t *testing.T, leadStore store.LeadStore, e *Engine) int64 {
	lead, err := leadStore.Create(context.Background(), models.Contact{
		Name: "A", Email: "a@x.com", Mobile: "1",
	})
	require.NoError(t, err)

	_, err = e.Start(context.Background(), lead.ID)
	require.NoError(t, err)
	return lead.ID
}

// failingStore commits reads but rejects every write.
type failingStore struct {
	store.LeadStore
}

func (s *failingStore) Update(context.Context, int64, []models.Message, models.Answers) error {
	return errors.New("connection refused")
}

type closingRecorder struct {
	lead *models.Lead
}

func (r *closingRecorder) NotifyClosing(_ context.Context, lead *models.Lead) error {
	r.lead = lead
	return nil
}

// ==========================
// Core Functionality Tests
// ==========================

func TestEngine_Start(t *testing.T) {
	leadStore := store.NewMemoryLeadStore()
	e := createTestEngine(t, leadStore)

	lead, err := leadStore.Create(context.Background(), models.Contact{
		Name: "Fatima", Email: "fatima@example.com", Mobile: "1",
	})
	require.NoError(t, err)

	result, err := e.Start(context.Background(), lead.ID)

	assert.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, flow.StepGreeting, result.Step)
	assert.Contains(t, result.Prompt, "Welcome, Fatima to KAYA Real Estate")
	assert.Equal(t, []string{"Yes, I'm looking!", "Just browsing"}, result.Choices)
	require.Len(t, result.Transcript, 1)
	assert.Equal(t, models.RoleAssistant, result.Transcript[0].Role)

	stored, err := leadStore.Get(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Transcript, 1)
}

func TestEngine_Start_Idempotent(t *testing.T) {
	leadStore := store.NewMemoryLeadStore()
	e := createTestEngine(t, leadStore)
	id := registerLead(t, leadStore, e)

	result, err := e.Start(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, flow.StepGreeting, result.Step)
	require.Len(t, result.Transcript, 1)

	stored, err := leadStore.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, stored.Transcript, 1)
}

func TestEngine_Advance_VisitsStepsInOrder(t *testing.T) {
	leadStore := store.NewMemoryLeadStore()
	e := createTestEngine(t, leadStore)
	id := registerLead(t, leadStore, e)

	turns := []struct {
		text     string
		wantStep flow.Step
	}{
		{"Yes, I'm looking!", flow.StepUnit},
		{"2BR or 3BR", flow.StepPurpose},
		{"Buy", flow.StepBudget},
		{"1.5M-3M", flow.StepArea},
		{"Marina", flow.StepQandA},
	}

	for _, turn := range turns {
		result, err := e.Advance(context.Background(), id, turn.text)
		require.NoError(t, err)
		assert.Equal(t, turn.wantStep, result.Step, "after %q", turn.text)
	}

	// qanda offers only the two exit phrases.
	lead, err := leadStore.Get(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, lead.Answers.Complete())
	assert.Equal(t, "2BR or 3BR", *lead.Answers.Unit)
	assert.Equal(t, "Buy", *lead.Answers.Purpose)
	assert.Equal(t, "1.5M-3M", *lead.Answers.Budget)
	assert.Equal(t, "Marina", *lead.Answers.Area)
	assert.Equal(t, models.StatusPending, lead.Status)

	result, err := e.Advance(context.Background(), id, "Talk to an agent")
	require.NoError(t, err)
	assert.Equal(t, flow.StepClosing, result.Step)
	assert.Empty(t, result.Choices)

	lead, err = leadStore.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, lead.Status)
}

func TestEngine_Advance_TranscriptLength(t *testing.T) {
	leadStore := store.NewMemoryLeadStore()
	e := createTestEngine(t, leadStore)
	id := registerLead(t, leadStore, e)

	userTurns := []string{"Yes, I'm looking!", "Studio / 1BR", "Rent"}
	for _, text := range userTurns {
		_, err := e.Advance(context.Background(), id, text)
		require.NoError(t, err)
	}

	// Greeting plus one user and one assistant entry per turn.
	lead, err := leadStore.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, lead.Transcript, 2*len(userTurns)+1)
}

func TestEngine_Advance_RentBudgetVariant(t *testing.T) {
	leadStore := store.NewMemoryLeadStore()
	e := createTestEngine(t, leadStore)

	t.Run("rent purpose", func(t *testing.T) {
		id := registerLead(t, leadStore, e)
		for _, text := range []string{"Yes, I'm looking!", "Studio / 1BR"} {
			_, err := e.Advance(context.Background(), id, text)
			require.NoError(t, err)
		}

		result, err := e.Advance(context.Background(), id, "Rent")
		require.NoError(t, err)
		assert.Equal(t, flow.StepBudget, result.Step)
		assert.Equal(t, "What is your yearly rental budget?", result.Prompt)
	})

	t.Run("buy purpose", func(t *testing.T) {
		id := registerLead(t, leadStore, e)
		for _, text := range []string{"Yes, I'm looking!", "Studio / 1BR"} {
			_, err := e.Advance(context.Background(), id, text)
			require.NoError(t, err)
		}

		result, err := e.Advance(context.Background(), id, "Buy")
		require.NoError(t, err)
		assert.Equal(t, flow.StepBudget, result.Step)
		assert.Equal(t, "What is your ideal budget range?", result.Prompt)
	})
}

func TestEngine_Advance_ExitPhraseFromAnyStep(t *testing.T) {
	tests := []struct {
		name       string
		priorTurns []string
		exitPhrase string
	}{
		{name: "from greeting", priorTurns: nil, exitPhrase: "No, I'm ready"},
		{name: "from purpose", priorTurns: []string{"Yes, I'm looking!", "Villa / Penthouse"}, exitPhrase: "Talk to an agent"},
		{name: "from qanda", priorTurns: []string{"Yes, I'm looking!", "Villa / Penthouse", "Buy", "Luxury", "Downtown"}, exitPhrase: "No, I'm ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leadStore := store.NewMemoryLeadStore()
			e := createTestEngine(t, leadStore)
			id := registerLead(t, leadStore, e)

			for _, text := range tt.priorTurns {
				_, err := e.Advance(context.Background(), id, text)
				require.NoError(t, err)
			}

			result, err := e.Advance(context.Background(), id, tt.exitPhrase)
			require.NoError(t, err)
			assert.Equal(t, flow.StepClosing, result.Step)
			assert.Empty(t, result.Choices)
		})
	}
}

func TestEngine_Advance_ClosingIsTerminal(t *testing.T) {
	leadStore := store.NewMemoryLeadStore()
	e := createTestEngine(t, leadStore)
	id := registerLead(t, leadStore, e)

	_, err := e.Advance(context.Background(), id, "No, I'm ready")
	require.NoError(t, err)

	before, err := leadStore.Get(context.Background(), id)
	require.NoError(t, err)

	// A duplicate exit phrase re-confirms closing; the stored transcript and
	// answers stay frozen.
	result, err := e.Advance(context.Background(), id, "No, I'm ready")
	require.NoError(t, err)
	assert.Equal(t, flow.StepClosing, result.Step)
	assert.Empty(t, result.Choices)

	after, err := leadStore.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, before.Answers, after.Answers)
	assert.Equal(t, before.Transcript, after.Transcript)

	// Free text after closing is equally ignored.
	_, err = e.Advance(context.Background(), id, "one more thing")
	require.NoError(t, err)
	final, err := leadStore.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, before.Transcript, final.Transcript)
}

func TestEngine_Advance_NotifiesOnClosingOnce(t *testing.T) {
	leadStore := store.NewMemoryLeadStore()
	recorder := &closingRecorder{}
	e := NewEngine(leadStore, recorder, logger.NewTestLogger(t))
	id := registerLead(t, leadStore, e)

	_, err := e.Advance(context.Background(), id, "Talk to an agent")
	require.NoError(t, err)
	require.NotNil(t, recorder.lead)
	assert.Equal(t, id, recorder.lead.ID)

	// Re-confirming closing must not notify again.
	recorder.lead = nil
	_, err = e.Advance(context.Background(), id, "Talk to an agent")
	require.NoError(t, err)
	assert.Nil(t, recorder.lead)
}

// ==========================
// Error Handling Tests
// ==========================

func TestEngine_UnknownSession(t *testing.T) {
	e := createTestEngine(t, store.NewMemoryLeadStore())

	_, err := e.Advance(context.Background(), 99, "hello")
	require.Error(t, err)
	assert.Equal(t, commonerrors.ErrCodeSessionNotFound, commonerrors.Normalize(err).Code)

	_, err = e.Start(context.Background(), 99)
	require.Error(t, err)
	assert.Equal(t, commonerrors.ErrCodeSessionNotFound, commonerrors.Normalize(err).Code)
}

func TestEngine_Advance_StoreFailureLeavesStateUnchanged(t *testing.T) {
	memory := store.NewMemoryLeadStore()
	healthy := createTestEngine(t, memory)
	id := registerLead(t, memory, healthy)

	broken := createTestEngine(t, &failingStore{LeadStore: memory})
	_, err := broken.Advance(context.Background(), id, "Yes, I'm looking!")

	require.Error(t, err)
	stdErr := commonerrors.Normalize(err)
	assert.Equal(t, commonerrors.ErrCodePersistenceFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)

	// The failed turn must not have advanced anything durable.
	lead, err := memory.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, lead.Transcript, 1)
	assert.False(t, lead.Answers.Complete())

	// Retrying against a healthy store succeeds from the same state.
	result, err := healthy.Advance(context.Background(), id, "Yes, I'm looking!")
	require.NoError(t, err)
	assert.Equal(t, flow.StepUnit, result.Step)
}
