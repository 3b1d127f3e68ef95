// internal/store/memory.go
package store

import (
	"context"
	"sync"
	"time"

	"kaya-concierge/internal/models"
)

// MemoryLeadStore is a map-backed LeadStore for tests and local development.
// A single RWMutex is enough for the contract: reads of one lead proceed
// while another is written, and every method returns copies so callers never
// share memory with the store.
type MemoryLeadStore struct {
	mu     sync.RWMutex
	nextID int64
	leads  map[int64]*models.Lead
}

func NewMemoryLeadStore() *MemoryLeadStore {
	return &MemoryLeadStore{
		nextID: 1,
		leads:  make(map[int64]*models.Lead),
	}
}

func (s *MemoryLeadStore) Create(_ context.Context, contact models.Contact) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead := &models.Lead{
		ID:         s.nextID,
		Contact:    contact,
		Transcript: []models.Message{},
		Answers:    models.Answers{},
		Status:     models.StatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	s.nextID++
	s.leads[lead.ID] = lead
	return lead.Clone(), nil
}

func (s *MemoryLeadStore) Update(_ context.Context, id int64, transcript []models.Message, answers models.Answers) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[id]
	if !ok {
		return ErrLeadNotFound
	}
	lead.Transcript = append([]models.Message(nil), transcript...)
	lead.Answers = answers.Clone()
	return nil
}

func (s *MemoryLeadStore) UpdateStatus(_ context.Context, id int64, status models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[id]
	if !ok {
		return ErrLeadNotFound
	}
	lead.Status = status
	return nil
}

func (s *MemoryLeadStore) Get(_ context.Context, id int64) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lead, ok := s.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	return lead.Clone(), nil
}

func (s *MemoryLeadStore) ListAll(_ context.Context) ([]*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	leads := make([]*models.Lead, 0, len(s.leads))
	for id := int64(1); id < s.nextID; id++ {
		if lead, ok := s.leads[id]; ok {
			leads = append(leads, lead.Clone())
		}
	}
	return leads, nil
}
