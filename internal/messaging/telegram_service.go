package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shiftdesk/shiftbot/internal/models"
	tele "gopkg.in/telebot.v4"
)

// DefaultPollTimeout is the long-poll timeout for the Telegram updates loop.
const DefaultPollTimeout = 10 * time.Second

// Opts holds configuration options for the Telegram service.
type Opts struct {
	Token       string
	PollTimeout time.Duration
}

// Option defines a configuration option for the Telegram service.
type Option func(*Opts)

// WithToken sets the bot credential.
func WithToken(token string) Option {
	return func(o *Opts) { o.Token = token }
}

// WithPollTimeout sets the long-poll timeout.
func WithPollTimeout(d time.Duration) Option {
	return func(o *Opts) { o.PollTimeout = d }
}

// TelegramService implements Service over the Telegram Bot API.
type TelegramService struct {
	bot        *tele.Bot
	dispatcher Dispatcher
	stopOnce   sync.Once
}

// recipient adapts an external identity string to telebot's Recipient.
type recipient string

func (r recipient) Recipient() string { return string(r) }

// NewTelegramService creates a Telegram-backed messaging service and registers
// the command and text handlers that feed the dispatcher.
func NewTelegramService(d Dispatcher, opts ...Option) (*TelegramService, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	// Fallback to environment variable if not provided via options
	if cfg.Token == "" {
		cfg.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram bot token must be provided")
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout},
		OnError: func(err error, c tele.Context) {
			slog.Error("TelegramService handler error", "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	s := &TelegramService{bot: bot, dispatcher: d}
	s.registerHandlers()

	slog.Debug("TelegramService created", "poll_timeout", cfg.PollTimeout)
	return s, nil
}

// registerHandlers wires Telegram updates into the dispatcher. Registered
// commands arrive via their own handlers; everything else, including
// unrecognized commands, falls through to OnText.
func (s *TelegramService) registerHandlers() {
	for _, command := range []string{"/start", "/cancel", "/help"} {
		s.bot.Handle(command, s.handleUpdate)
	}
	s.bot.Handle(tele.OnText, s.handleUpdate)
}

// handleUpdate converts a Telegram update into the transport-neutral message
// shape, dispatches it, and sends back whatever reply the engine produced.
func (s *TelegramService) handleUpdate(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	from := strconv.FormatInt(sender.ID, 10)
	text := c.Text()

	msg := models.Message{
		From:      from,
		Text:      text,
		IsCommand: strings.HasPrefix(text, "/"),
	}

	reply, ok := s.dispatcher.Dispatch(context.Background(), msg)
	if !ok {
		// No active flow and not a recognized command: stay silent.
		slog.Debug("TelegramService update produced no reply", "from", from)
		return nil
	}

	return c.Send(reply.Text, replyMarkupFor(reply.Suggestions))
}

// SendMessage sends a plain text message, removing any leftover quick-reply keyboard.
func (s *TelegramService) SendMessage(ctx context.Context, to string, body string) error {
	return s.SendMessageWithReplies(ctx, to, body, nil)
}

// SendMessageWithReplies sends a message with an optional quick-reply keyboard.
func (s *TelegramService) SendMessageWithReplies(ctx context.Context, to string, body string, replies []string) error {
	slog.Debug("TelegramService SendMessage invoked", "to", to, "body_length", len(body), "replies", len(replies))
	if _, err := s.bot.Send(recipient(to), body, replyMarkupFor(replies)); err != nil {
		slog.Error("TelegramService SendMessage error", "error", err, "to", to)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	return nil
}

// Start begins polling for Telegram updates. It returns once polling is
// running; the poller stops when ctx is cancelled or Stop is called.
func (s *TelegramService) Start(ctx context.Context) error {
	slog.Info("TelegramService starting long polling")
	go func() {
		<-ctx.Done()
		slog.Debug("TelegramService stopping due to context cancellation")
		s.stop()
	}()
	go s.bot.Start()
	return nil
}

// Stop stops the update poller. Safe to call more than once.
func (s *TelegramService) Stop() error {
	slog.Info("TelegramService Stop invoked")
	s.stop()
	return nil
}

func (s *TelegramService) stop() {
	s.stopOnce.Do(s.bot.Stop)
}

// replyMarkupFor renders suggestions as a one-time reply keyboard, one
// suggestion per row as the platform web UI lays them out. Without
// suggestions it removes any keyboard left over from a previous prompt.
func replyMarkupFor(replies []string) *tele.ReplyMarkup {
	if len(replies) == 0 {
		return &tele.ReplyMarkup{RemoveKeyboard: true}
	}

	markup := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
	rows := make([]tele.Row, 0, len(replies))
	for _, label := range replies {
		rows = append(rows, markup.Row(markup.Text(label)))
	}
	markup.Reply(rows...)
	return markup
}
