// internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"time"

	commonerrors "kaya-concierge/internal/common/errors"
	"kaya-concierge/internal/common/logger"
	"kaya-concierge/internal/common/metrics"
	"kaya-concierge/internal/common/observability"
	"kaya-concierge/internal/flow"
	"kaya-concierge/internal/models"
	"kaya-concierge/internal/notify"
	"kaya-concierge/internal/store"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TurnResult is the assistant's side of a completed turn.
type TurnResult struct {
	LeadID     int64
	Step       flow.Step
	Prompt     string
	Choices    []string
	Transcript []models.Message
}

// Engine drives the fixed conversation sequence. All mutation happens on
// copies of the loaded lead; the single store Update is the commit point, so
// a failed write leaves no partial state anywhere.
type Engine struct {
	store    store.LeadStore
	notifier notify.Notifier
	logger   logger.Logger
	obs      *observability.Observability
	tracer   *observability.Tracer
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithObservability attaches the otel meter and tracer.
func WithObservability(obs *observability.Observability, tracer *observability.Tracer) Option {
	return func(e *Engine) {
		e.obs = obs
		e.tracer = tracer
	}
}

// NewEngine creates the conversation engine. notifier may be nil to disable
// closing notifications.
func NewEngine(leadStore store.LeadStore, notifier notify.Notifier, log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:    leadStore,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"component": "engine"}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start seeds the transcript with the greeting message and returns the
// greeting view. Idempotent: a lead whose transcript is already seeded gets
// the greeting view back without a second write, so registration retries
// never duplicate the greeting.
func (e *Engine) Start(ctx context.Context, leadID int64) (*TurnResult, error) {
	lead, err := e.loadLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	view := flow.View(flow.StepGreeting, lead.Contact.Name, lead.Answers)
	if len(lead.Transcript) > 0 {
		return &TurnResult{
			LeadID:     leadID,
			Step:       flow.StepGreeting,
			Prompt:     view.Prompt,
			Choices:    view.Choices,
			Transcript: lead.Transcript,
		}, nil
	}
	transcript := appendMessage(lead.Transcript, models.RoleAssistant, view.Prompt)

	if err := e.store.Update(ctx, leadID, transcript, lead.Answers); err != nil {
		return nil, commonerrors.NewPersistenceFailedError(err)
	}

	e.logger.Info("conversation started", map[string]interface{}{
		"leadId": leadID,
	})

	return &TurnResult{
		LeadID:     leadID,
		Step:       flow.StepGreeting,
		Prompt:     view.Prompt,
		Choices:    view.Choices,
		Transcript: transcript,
	}, nil
}

// Advance processes one user turn: record the utterance, capture the answer
// the current question asked for, pick the next step, and persist. Closing is
// terminal: turns on a closed conversation re-confirm the closing view
// without writing, so the stored transcript and answers stay frozen.
func (e *Engine) Advance(ctx context.Context, leadID int64, text string) (*TurnResult, error) {
	start := time.Now()

	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.StartSpan(ctx, "engine.advance", attribute.Int64("leadId", leadID))
		defer span.End()
	}

	lead, err := e.loadLead(ctx, leadID)
	if err != nil {
		metrics.TurnsFailed.WithLabelValues(string(commonerrors.Normalize(err).Code)).Inc()
		return nil, err
	}

	if isClosed(lead.Transcript) {
		view := flow.View(flow.StepClosing, lead.Contact.Name, lead.Answers)
		metrics.TurnsProcessed.WithLabelValues(string(flow.StepClosing)).Inc()
		return &TurnResult{
			LeadID:     leadID,
			Step:       flow.StepClosing,
			Prompt:     view.Prompt,
			Choices:    view.Choices,
			Transcript: lead.Transcript,
		}, nil
	}

	current := currentStep(lead)
	transcript := appendMessage(lead.Transcript, models.RoleUser, text)
	answers := flow.Record(lead.Answers, current, text)

	next := flow.Next(answers)
	if flow.IsExitPhrase(text) {
		next = flow.StepClosing
	}

	view := flow.View(next, lead.Contact.Name, answers)
	transcript = appendMessage(transcript, models.RoleAssistant, view.Prompt)

	if err := e.store.Update(ctx, leadID, transcript, answers); err != nil {
		metrics.TurnsFailed.WithLabelValues(string(commonerrors.ErrCodePersistenceFailed)).Inc()
		return nil, commonerrors.NewPersistenceFailedError(err)
	}

	if next == flow.StepClosing {
		e.notifyClosing(ctx, lead, transcript, answers)
	}

	metrics.TurnsProcessed.WithLabelValues(string(next)).Inc()
	metrics.TurnDuration.Observe(time.Since(start).Seconds())
	if e.obs != nil {
		e.obs.RecordTurnProcessed(ctx, string(next))
		e.obs.RecordTurnDuration(ctx, time.Since(start), string(next))
	}

	e.logger.Info("turn processed", map[string]interface{}{
		"leadId": leadID,
		"step":   string(next),
	})

	return &TurnResult{
		LeadID:     leadID,
		Step:       next,
		Prompt:     view.Prompt,
		Choices:    view.Choices,
		Transcript: transcript,
	}, nil
}

func (e *Engine) loadLead(ctx context.Context, leadID int64) (*models.Lead, error) {
	lead, err := e.store.Get(ctx, leadID)
	if err != nil {
		if errors.Is(err, store.ErrLeadNotFound) {
			return nil, commonerrors.NewSessionNotFoundError(leadID)
		}
		return nil, commonerrors.NewPersistenceFailedError(err)
	}
	return lead, nil
}

// notifyClosing alerts the team about the finished lead. Notification
// failures are logged, never surfaced: the turn already committed.
func (e *Engine) notifyClosing(ctx context.Context, lead *models.Lead, transcript []models.Message, answers models.Answers) {
	if e.notifier == nil {
		return
	}

	closed := lead.Clone()
	closed.Transcript = transcript
	closed.Answers = answers

	if err := e.notifier.NotifyClosing(ctx, closed); err != nil {
		e.logger.Warn("closing notification failed", map[string]interface{}{
			"leadId": lead.ID,
			"error":  err.Error(),
		})
	}
}

// currentStep derives the step the visitor is answering on an open
// conversation. The last question asked is always the first unanswered slot,
// except before the first turn (greeting).
func currentStep(lead *models.Lead) flow.Step {
	if len(lead.Transcript) <= 1 {
		return flow.StepGreeting
	}
	return flow.Next(lead.Answers)
}

var closingPrompt = flow.View(flow.StepClosing, "", models.Answers{}).Prompt

func isClosed(transcript []models.Message) bool {
	if len(transcript) == 0 {
		return false
	}
	last := transcript[len(transcript)-1]
	return last.Role == models.RoleAssistant && last.Text == closingPrompt
}

func appendMessage(transcript []models.Message, role models.Role, text string) []models.Message {
	out := make([]models.Message, 0, len(transcript)+1)
	out = append(out, transcript...)
	return append(out, models.Message{Role: role, Text: text})
}
