package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"discal/internal/models"
)

// Announcer posts a channel message for a source event, replacing the
// event's previous announcement.
type Announcer interface {
	Announce(ctx context.Context, channelID, text, sourceEventID string) (string, error)
}

// Orchestrator dispatches each lifecycle notification: authorize, apply the
// calendar change, then announce it. It holds no per-event state, so
// notifications for different events can be handled concurrently.
type Orchestrator struct {
	logger    *slog.Logger
	auth      Authorizer
	calendar  *CalendarSync
	announcer Announcer
	channelID string
}

// NewOrchestrator creates an Orchestrator announcing into channelID.
func NewOrchestrator(logger *slog.Logger, auth Authorizer, calendar *CalendarSync, announcer Announcer, channelID string) *Orchestrator {
	return &Orchestrator{
		logger:    logger,
		auth:      auth,
		calendar:  calendar,
		announcer: announcer,
		channelID: channelID,
	}
}

// Handle processes a single notification end to end. Failures are logged
// and returned; they are never retried, and a failed calendar change is not
// announced.
func (o *Orchestrator) Handle(ctx context.Context, n models.Notification) error {
	o.logger.Info("Handling event notification", "kind", n.Kind.String(), "name", n.Event.Name, "eventID", n.Event.ID)

	session, err := o.auth.Authorize(ctx)
	if err != nil {
		o.logger.Error("Failed to authorize calendar session", "kind", n.Kind.String(), "name", n.Event.Name, "error", err)
		return fmt.Errorf("failed to authorize calendar session: %w", err)
	}

	var text string
	switch n.Kind {
	case models.EventCreated:
		entry, err := o.calendar.HandleCreated(ctx, n.Event, session)
		if err != nil {
			o.logger.Error("Failed to create calendar entry", "name", n.Event.Name, "error", err)
			return err
		}
		text = createdText(n.Event, entry)
	case models.EventUpdated:
		if _, err := o.calendar.HandleUpdated(ctx, n.Event, session); err != nil {
			o.logger.Error("Failed to update calendar entry", "name", n.Event.Name, "error", err)
			return err
		}
		text = fmt.Sprintf("Event updated: **%s**", n.Event.Name)
	case models.EventDeleted:
		if err := o.calendar.HandleDeleted(ctx, n.Event, session); err != nil {
			o.logger.Error("Failed to delete calendar entry", "name", n.Event.Name, "error", err)
			return err
		}
		text = fmt.Sprintf("Event deleted: **%s**", n.Event.Name)
	default:
		return fmt.Errorf("unknown notification kind %d", n.Kind)
	}

	if _, err := o.announcer.Announce(ctx, o.channelID, text, n.Event.ID); err != nil {
		o.logger.Error("Failed to announce event change", "kind", n.Kind.String(), "name", n.Event.Name, "error", err)
		return fmt.Errorf("failed to announce %s event: %w", n.Kind.String(), err)
	}
	return nil
}

func createdText(event models.SourceEvent, entry *models.CalendarEntry) string {
	text := fmt.Sprintf("New event created: **%s**", event.Name)
	if entry.HTMLLink != "" {
		text += fmt.Sprintf("\n📅 %s", entry.HTMLLink)
	}
	return text
}
