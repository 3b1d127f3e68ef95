// internal/models/status.go
package models

import "fmt"

// Status is the operator-facing CRM state of a lead. Transitions are
// unconstrained; any value may follow any other.
type Status string

const (
	StatusPending      Status = "Pending"
	StatusAgentTalking Status = "Agent Talking"
	StatusSuccess      Status = "Success"
	StatusUnsuccessful Status = "Unsuccessful"
)

// AllStatuses lists the allowed values in display order.
var AllStatuses = []Status{
	StatusPending,
	StatusAgentTalking,
	StatusSuccess,
	StatusUnsuccessful,
}

// ParseStatus validates a raw status value against the enum.
func ParseStatus(raw string) (Status, error) {
	for _, s := range AllStatuses {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// Valid reports whether s is inside the enum.
func (s Status) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}
