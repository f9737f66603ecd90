// Package api provides the HTTP surface and the main server logic for shiftbot.
//
// It exposes the notification endpoint the backend calls to push weekly
// schedules, and wires together the transport, engine, and backend client.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shiftdesk/shiftbot/internal/backend"
	"github.com/shiftdesk/shiftbot/internal/engine"
	"github.com/shiftdesk/shiftbot/internal/messaging"
	"github.com/shiftdesk/shiftbot/internal/models"
	"github.com/shiftdesk/shiftbot/internal/notify"
	"github.com/shiftdesk/shiftbot/internal/session"
)

// Default configuration constants
const (
	// DefaultAddr is the default listen address for the notification API.
	DefaultAddr = ":8090"
	// shutdownTimeout bounds graceful HTTP shutdown.
	shutdownTimeout = 5 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server serves the notification API.
type Server struct {
	addr   string
	sender *notify.Sender
}

// NewServer creates an API server delivering notifications via the given sender.
func NewServer(sender *notify.Sender, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{addr: cfg.Addr, sender: sender}
}

// Handler returns the HTTP handler for the notification API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/notifications/schedule", s.scheduleNotificationHandler)
	return mux
}

// scheduleNotificationHandler accepts a weekly schedule from the backend and
// pushes it to the user's chat.
func (s *Server) scheduleNotificationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.scheduleNotificationHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.scheduleNotificationHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.ScheduleNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.scheduleNotificationHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.scheduleNotificationHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	if !s.sender.Send(r.Context(), req.TelegramID, req.Schedule) {
		slog.Error("Server.scheduleNotificationHandler: delivery failed", "identity", req.TelegramID)
		writeJSONResponse(w, http.StatusBadGateway, models.Error("Failed to deliver notification"))
		return
	}

	slog.Info("Server.scheduleNotificationHandler: notification delivered", "identity", req.TelegramID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Notification delivered", nil))
}

// Run wires the full service together and blocks until shutdown: it builds
// the backend client, session store, engine, dispatcher, Telegram transport,
// notification sender, and the notification API server.
func Run(msgOpts []messaging.Option, backendOpts []backend.Option, engineOpts []engine.Option, apiOpts []Option) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backendClient := backend.NewClient(backendOpts...)
	store := session.NewStore()
	eng := engine.NewEngine(store, backendClient, engineOpts...)
	dispatcher := engine.NewDispatcher(eng, store)

	msgService, err := messaging.NewTelegramService(dispatcher, msgOpts...)
	if err != nil {
		return fmt.Errorf("failed to create messaging service: %w", err)
	}

	if err := msgService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	defer msgService.Stop()

	sender := notify.NewSender(msgService)
	server := NewServer(sender, apiOpts...)

	httpServer := &http.Server{Addr: server.addr, Handler: server.Handler()}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Notification API listening", "addr", server.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("notification API server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Notification API shutdown error", "error", err)
	}
	return nil
}
