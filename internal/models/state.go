// Package models defines session state structures for registration flows.
package models

import "time"

// SessionState identifies the step a registration conversation is waiting on.
// There is no "not started" state: the absence of a session is the not-started
// condition, so a stored session always carries one of these values.
type SessionState string

const (
	// StateAwaitingFirstName waits for the user's first name.
	StateAwaitingFirstName SessionState = "AWAITING_FIRST_NAME"
	// StateAwaitingLastName waits for the user's last name.
	StateAwaitingLastName SessionState = "AWAITING_LAST_NAME"
	// StateAwaitingPosition waits for a position picked from the suggestion set.
	StateAwaitingPosition SessionState = "AWAITING_POSITION"
	// StateAwaitingPositionFreeText waits for a free-text position after the
	// user chose "Other"; the next text input is accepted verbatim.
	StateAwaitingPositionFreeText SessionState = "AWAITING_POSITION_FREE_TEXT"
	// StateAwaitingSecret waits for the shared secret code.
	StateAwaitingSecret SessionState = "AWAITING_SECRET"
)

// IsValidSessionState checks if the given session state is supported.
func IsValidSessionState(s SessionState) bool {
	switch s {
	case StateAwaitingFirstName, StateAwaitingLastName, StateAwaitingPosition,
		StateAwaitingPositionFreeText, StateAwaitingSecret:
		return true
	default:
		return false
	}
}

// Session represents one in-progress registration conversation.
// Fields are populated monotonically in state order: a session in
// StateAwaitingPosition always has FirstName and LastName set, and a session
// in StateAwaitingSecret additionally has Position set.
type Session struct {
	Identity  string       `json:"identity"`
	State     SessionState `json:"state"`
	FirstName string       `json:"first_name,omitempty"`
	LastName  string       `json:"last_name,omitempty"`
	Position  string       `json:"position,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
