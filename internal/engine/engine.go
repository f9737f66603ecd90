// Package engine implements the per-user registration state machine.
//
// Given the current session (or its absence) and an inbound message, the
// engine decides the next state, what data to store, what reply to produce,
// and when to call the backend. Every flow is a single linear pass through
// the states; wrong secret, cancellation, backend failure, and success all
// end the flow by deleting the session.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shiftdesk/shiftbot/internal/backend"
	"github.com/shiftdesk/shiftbot/internal/models"
	"github.com/shiftdesk/shiftbot/internal/session"
)

// Position suggestion labels offered on the position-choice step.
const (
	PositionCourier = "Courier"
	PositionManager = "Manager"
	PositionOther   = "Other"
)

// PositionSuggestions is the ordered quick-reply set for the position step.
var PositionSuggestions = []string{PositionCourier, PositionManager, PositionOther}

// User-facing messages.
const (
	msgIntro = "Hi! I will help you register in the shift scheduling system.\n\n" +
		"To register I need the following information:\n" +
		"1. First name\n" +
		"2. Last name\n" +
		"3. Position\n" +
		"4. Secret code\n\n" +
		"Let's get started! Please type your first name:"
	msgAskFirstName   = "Please type your first name:"
	msgAskLastName    = "Great! Now type your last name:"
	msgAskPosition    = "Good! Now choose your position:"
	msgAskFreeText    = "Please type your position:"
	msgAskSecret      = "Great! Now enter the secret code to complete your registration:"
	msgInvalidSecret  = "❌ Invalid secret code!\n\nPlease start over or contact an administrator."
	msgCancelled      = "Registration cancelled. Use /start to begin registration."
	msgRegisterFailed = "❌ Something went wrong during registration. Please try again later."
	msgHelp           = "\U0001f916 Available commands:\n\n" +
		"/start - Begin registration\n" +
		"/cancel - Cancel the current operation\n" +
		"/help - Show this message\n\n" +
		"Use /start to register"
)

// nowFunc is swapped out in tests.
var nowFunc = time.Now

// Engine is the conversation state machine for registration flows.
type Engine struct {
	store      *session.Store
	backend    BackendClient
	secretCode string
}

// BackendClient is the subset of the backend API the engine needs.
type BackendClient interface {
	FindByIdentity(ctx context.Context, identity string) (*models.UserRecord, error)
	Register(ctx context.Context, reg models.RegistrationRequest) error
}

// Opts holds configuration options for the engine.
type Opts struct {
	SecretCode string
}

// Option defines a configuration option for the engine.
type Option func(*Opts)

// WithSecretCode sets the shared registration secret. User input is compared
// exactly: case-sensitive, no normalization.
func WithSecretCode(code string) Option {
	return func(o *Opts) { o.SecretCode = code }
}

// NewEngine creates a conversation engine over the given store and backend.
func NewEngine(store *session.Store, client BackendClient, opts ...Option) *Engine {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Engine created", "secret_set", cfg.SecretCode != "")
	return &Engine{store: store, backend: client, secretCode: cfg.SecretCode}
}

// HandleStart begins a registration flow for an identity.
//
// If the backend already knows the identity, no session is created and the
// reply echoes the stored profile. Otherwise a fresh session is created; a
// /start mid-flow discards the old session and restarts, which is safe
// because no external effect has happened yet.
func (e *Engine) HandleStart(ctx context.Context, identity string) models.Reply {
	slog.Debug("Engine HandleStart", "identity", identity)

	existing, err := e.backend.FindByIdentity(ctx, identity)
	if err != nil {
		// Lookup never fails for transport reasons, only on misuse;
		// still treat it as unknown so the flow can be offered.
		slog.Warn("Engine HandleStart lookup error, offering registration", "error", err, "identity", identity)
		existing = nil
	}

	if existing != nil {
		slog.Info("Engine HandleStart identity already registered", "identity", identity)
		e.store.Delete(identity)
		return models.Reply{
			To: identity,
			Text: fmt.Sprintf("You are already registered!\n\n"+
				"Name: %s %s\nPosition: %s\n\n"+
				"An administrator can add your schedule on the website.",
				existing.FirstName, existing.LastName, existing.Position),
		}
	}

	sess := models.Session{
		Identity: identity,
		State:    models.StateAwaitingFirstName,
	}
	e.stamp(&sess)
	e.store.Put(sess)

	slog.Info("Engine registration flow started", "identity", identity)
	return models.Reply{To: identity, Text: msgIntro}
}

// HandleCancel ends any in-progress flow for an identity. The reply is the
// same whether or not a flow was active.
func (e *Engine) HandleCancel(ctx context.Context, identity string) models.Reply {
	if _, ok := e.store.Get(identity); ok {
		e.store.Delete(identity)
		slog.Info("Engine registration cancelled", "identity", identity)
	}
	return models.Reply{To: identity, Text: msgCancelled}
}

// HandleHelp returns the static command list. It is session-independent.
func (e *Engine) HandleHelp(identity string) models.Reply {
	return models.Reply{To: identity, Text: msgHelp}
}

// HandleText advances the current flow with a free-text input. The second
// return value is false when the identity has no active session, in which
// case unsolicited text produces no reply.
func (e *Engine) HandleText(ctx context.Context, identity, text string) (models.Reply, bool) {
	sess, ok := e.store.Get(identity)
	if !ok {
		slog.Debug("Engine ignoring text without active session", "identity", identity)
		return models.Reply{}, false
	}

	slog.Debug("Engine HandleText", "identity", identity, "state", sess.State)

	switch sess.State {
	case models.StateAwaitingFirstName:
		return e.handleFirstName(sess, text), true
	case models.StateAwaitingLastName:
		return e.handleLastName(sess, text), true
	case models.StateAwaitingPosition:
		return e.handlePosition(sess, text), true
	case models.StateAwaitingPositionFreeText:
		return e.handlePositionFreeText(sess, text), true
	case models.StateAwaitingSecret:
		return e.handleSecret(ctx, sess, text), true
	default:
		// Unknown state means the session is corrupt; end the flow.
		slog.Error("Engine session in unknown state, deleting", "identity", identity, "state", sess.State)
		e.store.Delete(identity)
		return models.Reply{To: identity, Text: msgCancelled}, true
	}
}

func (e *Engine) handleFirstName(sess models.Session, text string) models.Reply {
	name := strings.TrimSpace(text)
	if name == "" || len(name) > models.MaxNameLength {
		return e.reprompt(sess)
	}

	sess.FirstName = name
	sess.State = models.StateAwaitingLastName
	e.stamp(&sess)
	e.store.Put(sess)
	return models.Reply{To: sess.Identity, Text: msgAskLastName}
}

func (e *Engine) handleLastName(sess models.Session, text string) models.Reply {
	name := strings.TrimSpace(text)
	if name == "" || len(name) > models.MaxNameLength {
		return e.reprompt(sess)
	}

	sess.LastName = name
	sess.State = models.StateAwaitingPosition
	e.stamp(&sess)
	e.store.Put(sess)
	return models.Reply{To: sess.Identity, Text: msgAskPosition, Suggestions: PositionSuggestions}
}

func (e *Engine) handlePosition(sess models.Session, text string) models.Reply {
	position := strings.TrimSpace(text)

	// "Other" re-enters the same step expecting free text; the next input
	// is then accepted unconditionally, even the literal "Other".
	if position == PositionOther {
		sess.State = models.StateAwaitingPositionFreeText
		e.stamp(&sess)
		e.store.Put(sess)
		return models.Reply{To: sess.Identity, Text: msgAskFreeText}
	}

	if position == "" || len(position) > models.MaxPositionLength {
		return e.reprompt(sess)
	}
	return e.acceptPosition(sess, position)
}

func (e *Engine) handlePositionFreeText(sess models.Session, text string) models.Reply {
	position := strings.TrimSpace(text)
	if position == "" || len(position) > models.MaxPositionLength {
		return e.reprompt(sess)
	}
	return e.acceptPosition(sess, position)
}

func (e *Engine) acceptPosition(sess models.Session, position string) models.Reply {
	sess.Position = position
	sess.State = models.StateAwaitingSecret
	e.stamp(&sess)
	e.store.Put(sess)
	return models.Reply{To: sess.Identity, Text: msgAskSecret}
}

// handleSecret checks the shared secret and finishes the flow. Every branch
// is terminal: the session is deleted whether registration succeeds, the
// backend rejects it, the call fails, or the secret is wrong.
func (e *Engine) handleSecret(ctx context.Context, sess models.Session, text string) models.Reply {
	if text != e.secretCode {
		e.store.Delete(sess.Identity)
		slog.Info("Engine registration rejected: wrong secret", "identity", sess.Identity)
		return models.Reply{To: sess.Identity, Text: msgInvalidSecret}
	}

	err := e.backend.Register(ctx, models.RegistrationRequest{
		TelegramID: sess.Identity,
		FirstName:  sess.FirstName,
		LastName:   sess.LastName,
		Position:   sess.Position,
		SecretCode: text,
	})
	e.store.Delete(sess.Identity)

	if err != nil {
		var backendErr *backend.BackendError
		if errors.As(err, &backendErr) {
			slog.Warn("Engine registration rejected by backend", "identity", sess.Identity, "message", backendErr.Message)
			return models.Reply{
				To: sess.Identity,
				Text: fmt.Sprintf("❌ Registration failed: %s\n\nPlease try again with /start",
					backendErr.Message),
			}
		}
		slog.Error("Engine registration call failed", "error", err, "identity", sess.Identity)
		return models.Reply{To: sess.Identity, Text: msgRegisterFailed}
	}

	slog.Info("Engine registration completed", "identity", sess.Identity, "position", sess.Position)
	return models.Reply{
		To: sess.Identity,
		Text: fmt.Sprintf("✅ Registration complete!\n\n"+
			"Name: %s %s\nPosition: %s\n\n"+
			"An administrator can now add your schedule on the website. "+
			"You will receive weekly notifications about your schedule.",
			sess.FirstName, sess.LastName, sess.Position),
	}
}

// reprompt repeats the question for the session's current state without
// changing it, used when free text is empty or over-long.
func (e *Engine) reprompt(sess models.Session) models.Reply {
	reply := models.Reply{To: sess.Identity}
	switch sess.State {
	case models.StateAwaitingFirstName:
		reply.Text = msgAskFirstName
	case models.StateAwaitingLastName:
		reply.Text = msgAskLastName
	case models.StateAwaitingPosition:
		reply.Text = msgAskPosition
		reply.Suggestions = PositionSuggestions
	case models.StateAwaitingPositionFreeText:
		reply.Text = msgAskFreeText
	case models.StateAwaitingSecret:
		reply.Text = msgAskSecret
	}
	return reply
}

func (e *Engine) stamp(sess *models.Session) {
	now := nowFunc()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
}
