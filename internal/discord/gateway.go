package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"discal/internal/models"
)

// NotificationHandler processes one lifecycle notification end to end.
type NotificationHandler interface {
	Handle(ctx context.Context, n models.Notification) error
}

const watchActivity = "the event schedule"

// NewSession creates a configured but unopened gateway session with the
// intents required for scheduled-event dispatches.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentMessageContent |
		discordgo.IntentGuildScheduledEvents
	return session, nil
}

// Gateway turns scheduled-event gateway dispatches into notifications for
// the handler. Each dispatch is handled on its own goroutine; dispatches
// are independent and carry no ordering guarantee.
type Gateway struct {
	logger  *slog.Logger
	session *discordgo.Session
	handler NotificationHandler
}

// NewGateway registers the scheduled-event listeners on the session.
func NewGateway(logger *slog.Logger, session *discordgo.Session, handler NotificationHandler) *Gateway {
	g := &Gateway{logger: logger, session: session, handler: handler}

	session.AddHandler(func(s *discordgo.Session, e *discordgo.GuildScheduledEventCreate) {
		g.logger.Info("Discord event created", "name", e.Name)
		g.dispatch(models.Notification{Kind: models.EventCreated, Event: fromGuildScheduledEvent(e.GuildScheduledEvent)})
	})
	session.AddHandler(func(s *discordgo.Session, e *discordgo.GuildScheduledEventUpdate) {
		g.logger.Info("Discord event updated", "name", e.Name)
		g.dispatch(models.Notification{Kind: models.EventUpdated, Event: fromGuildScheduledEvent(e.GuildScheduledEvent)})
	})
	session.AddHandler(func(s *discordgo.Session, e *discordgo.GuildScheduledEventDelete) {
		g.logger.Info("Discord event deleted", "name", e.Name)
		g.dispatch(models.Notification{Kind: models.EventDeleted, Event: fromGuildScheduledEvent(e.GuildScheduledEvent)})
	})
	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		g.logger.Info("Logged in", "user", r.User.Username)
		if err := s.UpdateWatchStatus(0, watchActivity); err != nil {
			g.logger.Warn("Failed to set presence", "error", err)
		}
	})

	return g
}

// Start opens the gateway connection.
func (g *Gateway) Start() error {
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("failed to open gateway connection: %w", err)
	}
	return nil
}

// Stop closes the gateway connection.
func (g *Gateway) Stop() error {
	return g.session.Close()
}

func (g *Gateway) dispatch(n models.Notification) {
	go func() {
		if err := g.handler.Handle(context.Background(), n); err != nil {
			g.logger.Error("Notification handling failed", "kind", n.Kind.String(), "name", n.Event.Name, "error", err)
		}
	}()
}

// fromGuildScheduledEvent converts a gateway scheduled event to the
// internal representation. A missing end time stays zero.
func fromGuildScheduledEvent(ev *discordgo.GuildScheduledEvent) models.SourceEvent {
	event := models.SourceEvent{
		ID:          ev.ID,
		Name:        ev.Name,
		Description: ev.Description,
		StartTime:   ev.ScheduledStartTime,
	}
	if ev.ScheduledEndTime != nil {
		event.EndTime = *ev.ScheduledEndTime
	}
	event.Location = ev.EntityMetadata.Location
	return event
}
