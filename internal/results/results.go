// Package results holds the result-store data model and its SQLite-backed
// implementation: executions, item/test call ids, captured variables and the
// user directory.
package results

import (
	"strings"
	"time"
)

// VariableType distinguishes captured responses from computed outcomes.
type VariableType int

const (
	ResponseVariable VariableType = iota
	OutcomeVariable
)

func (t VariableType) String() string {
	if t == OutcomeVariable {
		return "outcome"
	}
	return "response"
}

// Variable is one recorded (identifier, value) pair scoped to a call id.
type Variable struct {
	Type       VariableType
	Identifier string
	Value      string
}

// IsResponse reports whether the variable captures what the test taker
// submitted.
func (v Variable) IsResponse() bool { return v.Type == ResponseVariable }

// IsOutcome reports whether the variable is a computed/scored value.
func (v Variable) IsOutcome() bool { return v.Type == OutcomeVariable }

// Execution is one test taker's attempt at a delivery.
type Execution struct {
	ID         string
	DeliveryID string
	UserID     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// User is a minimal directory entry: whatever is needed to label a row or
// export a login.
type User struct {
	ID     string
	Label  string
	Login  string
	LTIKey string
}

// DisplayLogin resolves the exportable login credential: platform login
// first, then the LTI key, then the display label.
func (u User) DisplayLogin() string {
	if u.Login != "" {
		return u.Login
	}
	if u.LTIKey != "" {
		return u.LTIKey
	}
	return u.Label
}

// ItemRefFromCallID extracts the item-ref identifier from an item call id of
// the form "<executionID>#<testID>.<itemRefID>.<occurrence>".
func ItemRefFromCallID(callID string) (string, bool) {
	_, after, found := strings.Cut(callID, "#")
	if !found {
		return "", false
	}
	parts := strings.Split(after, ".")
	if len(parts) < 2 || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
