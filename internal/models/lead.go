// internal/models/lead.go
package models

import "time"

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single transcript entry. The transcript is append-only and
// chronological.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"content"`
}

// Contact holds the registration fields. Immutable after creation.
type Contact struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Mobile string `json:"mobile"`
}

// Lead is one visitor's registration, conversation, and preferences.
type Lead struct {
	ID         int64     `json:"id" db:"id"`
	Contact    Contact   `json:"contact"`
	Transcript []Message `json:"transcript"`
	Answers    Answers   `json:"answers"`
	Status     Status    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// Description flattens the captured preferences into the report line,
// falling back to generic literals for unset answers.
func (l *Lead) Description() string {
	unit := "Inquiry"
	if l.Answers.Unit != nil {
		unit = *l.Answers.Unit
	}
	area := "Dubai"
	if l.Answers.Area != nil {
		area = *l.Answers.Area
	}
	return unit + " in " + area
}

// Clone returns a deep copy so callers can mutate without touching the
// original until a store write commits.
func (l *Lead) Clone() *Lead {
	c := *l
	c.Transcript = make([]Message, len(l.Transcript))
	copy(c.Transcript, l.Transcript)
	c.Answers = l.Answers.Clone()
	return &c
}
