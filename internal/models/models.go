// Package models defines the core data structures for shiftbot.
//
// It includes inbound/outbound message types, the backend user record,
// weekly schedule payloads, and the JSON envelope used by the notification API.
package models

import "errors"

// Validation constants for input validation
const (
	// MaxNameLength defines the maximum allowed length for first and last names.
	MaxNameLength = 100
	// MaxPositionLength defines the maximum allowed length for a free-text position.
	MaxPositionLength = 200
)

// Error variables for better error handling and testability
var (
	ErrEmptyIdentity = errors.New("identity cannot be empty")
	ErrEmptyText     = errors.New("text cannot be empty")
	ErrNoSession     = errors.New("no active session for identity")
)

// Message represents an inbound transport event from a user.
type Message struct {
	From      string `json:"from"`       // external identity of the sender
	Text      string `json:"text"`       // raw message text
	IsCommand bool   `json:"is_command"` // true for transport-level commands (/start, /cancel, ...)
}

// Reply represents an outbound message produced by the conversation engine.
// Suggestions is non-nil only when the transport should offer quick replies.
type Reply struct {
	To          string   `json:"to"`
	Text        string   `json:"text"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// UserRecord represents a registered user as stored by the backend.
// JSON tags match the backend API payloads.
type UserRecord struct {
	TelegramID string `json:"telegramId"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Position   string `json:"position"`
}

// RegistrationRequest is the payload for the backend registration endpoint.
type RegistrationRequest struct {
	TelegramID string `json:"telegramId"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Position   string `json:"position"`
	SecretCode string `json:"secretCode"`
}

// WeeklySchedule holds one week of shift descriptions for a user.
// Empty days render as a day off; TotalHours defaults to zero.
type WeeklySchedule struct {
	Monday     string  `json:"monday,omitempty"`
	Tuesday    string  `json:"tuesday,omitempty"`
	Wednesday  string  `json:"wednesday,omitempty"`
	Thursday   string  `json:"thursday,omitempty"`
	Friday     string  `json:"friday,omitempty"`
	Saturday   string  `json:"saturday,omitempty"`
	Sunday     string  `json:"sunday,omitempty"`
	TotalHours float64 `json:"totalHours,omitempty"`
}

// ScheduleNotificationRequest is the payload the backend posts to the
// notification API to push a weekly schedule to a user.
type ScheduleNotificationRequest struct {
	TelegramID string         `json:"telegramId"`
	Schedule   WeeklySchedule `json:"schedule"`
}

// Validate checks that a notification request targets a user.
func (r *ScheduleNotificationRequest) Validate() error {
	if r.TelegramID == "" {
		return ErrEmptyIdentity
	}
	return nil
}

// API Response types for consistent JSON responses

// APIStatus represents the status field of an API response.
type APIStatus string

const (
	// APIStatusOK indicates a successful API operation.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates a failed API operation.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
