// internal/notify/notifier.go
package notify

import (
	"context"
	"fmt"
	"strings"

	"kaya-concierge/internal/models"
)

// Notifier alerts the operations team when a visitor finishes the
// conversation. The closing message promises a follow-up, so someone has to
// hear about the lead.
type Notifier interface {
	NotifyClosing(ctx context.Context, lead *models.Lead) error
}

// Multi fans a notification out to several channels. Every channel is
// attempted; failures are collected.
type Multi []Notifier

func (m Multi) NotifyClosing(ctx context.Context, lead *models.Lead) error {
	var failed []string
	for _, n := range m {
		if err := n.NotifyClosing(ctx, lead); err != nil {
			failed = append(failed, err.Error())
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("notify closing: %s", strings.Join(failed, "; "))
	}
	return nil
}

// summarize renders the lead for a human reader.
func summarize(lead *models.Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New priority lead #%d\n", lead.ID)
	fmt.Fprintf(&b, "Name: %s\n", lead.Contact.Name)
	fmt.Fprintf(&b, "Email: %s\n", lead.Contact.Email)
	fmt.Fprintf(&b, "Mobile: %s\n", lead.Contact.Mobile)
	fmt.Fprintf(&b, "Interest: %s\n", lead.Description())
	if lead.Answers.Purpose != nil {
		fmt.Fprintf(&b, "Purpose: %s\n", *lead.Answers.Purpose)
	}
	if lead.Answers.Budget != nil {
		fmt.Fprintf(&b, "Budget: %s\n", *lead.Answers.Budget)
	}
	fmt.Fprintf(&b, "Status: %s\n", lead.Status)
	return b.String()
}
