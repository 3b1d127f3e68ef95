// internal/store/store.go
package store

import (
	"context"
	"errors"

	"kaya-concierge/internal/models"
)

// ErrLeadNotFound is returned when an operation targets an id the store has
// never issued.
var ErrLeadNotFound = errors.New("lead not found")

// LeadStore is the persistence contract for leads. Implementations must
// allow concurrent operations on different ids without interference;
// overlapping writes to the same id are out of contract (one active session
// per lead).
type LeadStore interface {
	// Create inserts a new lead with the given contact, an empty transcript,
	// unset answers, and Pending status, and returns it with its assigned id.
	Create(ctx context.Context, contact models.Contact) (*models.Lead, error)

	// Update persists the transcript and answers for an existing lead.
	Update(ctx context.Context, id int64, transcript []models.Message, answers models.Answers) error

	// UpdateStatus sets the operator-facing status.
	UpdateStatus(ctx context.Context, id int64, status models.Status) error

	// Get loads one lead by id.
	Get(ctx context.Context, id int64) (*models.Lead, error)

	// ListAll returns every lead in stable (insertion) order.
	ListAll(ctx context.Context) ([]*models.Lead, error)
}
