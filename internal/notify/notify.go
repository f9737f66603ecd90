// Package notify renders weekly schedules and pushes them to users.
//
// The sender is invoked by the backend system, never by the conversation
// flow, and has no session dependency.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shiftdesk/shiftbot/internal/messaging"
	"github.com/shiftdesk/shiftbot/internal/models"
)

// dayOff is rendered for any day without a shift description.
const dayOff = "day off"

// Sender delivers weekly schedule notifications over a messaging service.
type Sender struct {
	msgService messaging.Service
}

// NewSender creates a notification sender over the given messaging service.
func NewSender(msgService messaging.Service) *Sender {
	return &Sender{msgService: msgService}
}

// Send renders the schedule and delivers it to the identity. It reports
// delivery success and never propagates transport errors past this boundary.
func (s *Sender) Send(ctx context.Context, identity string, schedule models.WeeklySchedule) bool {
	if identity == "" {
		slog.Warn("Notify Send dropped: empty identity")
		return false
	}

	message := Render(schedule)
	if err := s.msgService.SendMessage(ctx, identity, message); err != nil {
		slog.Error("Notify Send delivery failed", "error", err, "identity", identity)
		return false
	}

	slog.Info("Notify schedule delivered", "identity", identity, "total_hours", schedule.TotalHours)
	return true
}

// Render formats a weekly schedule as the fixed seven-line message plus the
// total-hours line.
func Render(schedule models.WeeklySchedule) string {
	days := []struct {
		label string
		shift string
	}{
		{"Monday", schedule.Monday},
		{"Tuesday", schedule.Tuesday},
		{"Wednesday", schedule.Wednesday},
		{"Thursday", schedule.Thursday},
		{"Friday", schedule.Friday},
		{"Saturday", schedule.Saturday},
		{"Sunday", schedule.Sunday},
	}

	var b strings.Builder
	b.WriteString("\U0001f4c5 Your schedule for the week:\n\n")
	for _, day := range days {
		shift := day.shift
		if shift == "" {
			shift = dayOff
		}
		fmt.Fprintf(&b, "%s: %s\n", day.label, shift)
	}
	fmt.Fprintf(&b, "\nTotal hours: %s", strconv.FormatFloat(schedule.TotalHours, 'f', -1, 64))
	return b.String()
}
