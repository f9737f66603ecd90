package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shiftdesk/shiftbot/internal/models"
	"github.com/shiftdesk/shiftbot/internal/session"
)

// Dispatcher routes inbound transport events to the engine. It holds the
// sender's per-identity session lock for the whole handler, including any
// backend call, guaranteeing at most one in-flight state transition per
// identity while distinct identities run in parallel.
type Dispatcher struct {
	engine *Engine
	store  *session.Store
}

// NewDispatcher creates a dispatcher over the given engine and store.
func NewDispatcher(e *Engine, st *session.Store) *Dispatcher {
	return &Dispatcher{engine: e, store: st}
}

// Dispatch handles one inbound message and returns the reply to deliver.
// The second return value is false when no reply should be sent (unsolicited
// text with no active flow).
func (d *Dispatcher) Dispatch(ctx context.Context, msg models.Message) (models.Reply, bool) {
	if msg.From == "" {
		slog.Warn("Dispatcher dropping message without sender identity")
		return models.Reply{}, false
	}

	d.store.Lock(msg.From)
	defer d.store.Unlock(msg.From)

	if msg.IsCommand {
		return d.dispatchCommand(ctx, msg)
	}
	return d.engine.HandleText(ctx, msg.From, msg.Text)
}

// dispatchCommand routes /start, /cancel, and /help. Commands take priority
// over whatever state the flow is in; unknown commands get the help reply.
func (d *Dispatcher) dispatchCommand(ctx context.Context, msg models.Message) (models.Reply, bool) {
	command := commandWord(msg.Text)
	slog.Debug("Dispatcher routing command", "from", msg.From, "command", command)

	switch command {
	case "/start":
		return d.engine.HandleStart(ctx, msg.From), true
	case "/cancel":
		return d.engine.HandleCancel(ctx, msg.From), true
	case "/help":
		return d.engine.HandleHelp(msg.From), true
	default:
		return d.engine.HandleHelp(msg.From), true
	}
}

// commandWord extracts the leading command, dropping arguments and the
// @botname suffix Telegram appends in group chats.
func commandWord(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	command := fields[0]
	if at := strings.IndexByte(command, '@'); at > 0 {
		command = command[:at]
	}
	return command
}
