// internal/models/answers.go
package models

// Answers holds the fixed set of preferences collected by the flow. Fields
// are optional strings rather than an open map so a missing key is a compile
// error, not a runtime surprise. A value, once set, is never overwritten by
// the nominal flow.
type Answers struct {
	Unit    *string `json:"unit"`
	Purpose *string `json:"purpose"`
	Budget  *string `json:"budget"`
	Area    *string `json:"area"`
}

// Complete reports whether every answer has been captured.
func (a Answers) Complete() bool {
	return a.Unit != nil && a.Purpose != nil && a.Budget != nil && a.Area != nil
}

// IsRent reports whether the visitor is looking to rent, which switches the
// budget prompt variant.
func (a Answers) IsRent() bool {
	return a.Purpose != nil && *a.Purpose == "Rent"
}

// Clone returns a copy with its own pointer cells.
func (a Answers) Clone() Answers {
	return Answers{
		Unit:    clonePtr(a.Unit),
		Purpose: clonePtr(a.Purpose),
		Budget:  clonePtr(a.Budget),
		Area:    clonePtr(a.Area),
	}
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StringPtr is a convenience for building Answers literals.
func StringPtr(s string) *string {
	return &s
}
