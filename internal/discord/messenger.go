package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// Messenger sends and removes channel messages over the gateway session.
// It implements announce.Messenger.
type Messenger struct {
	logger  *slog.Logger
	session *discordgo.Session
}

// NewMessenger creates a Messenger over an existing session.
func NewMessenger(logger *slog.Logger, session *discordgo.Session) *Messenger {
	return &Messenger{logger: logger, session: session}
}

// ResolveChannel verifies the channel exists and is reachable.
func (m *Messenger) ResolveChannel(ctx context.Context, channelID string) error {
	if _, err := m.session.Channel(channelID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("channel not found: %w", err)
	}
	return nil
}

// Send posts text to the channel and returns the new message's ID.
func (m *Messenger) Send(ctx context.Context, channelID, text string) (string, error) {
	message, err := m.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	return message.ID, nil
}

// FetchMessage verifies a previously-sent message still exists.
func (m *Messenger) FetchMessage(ctx context.Context, channelID, messageID string) error {
	if _, err := m.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to fetch message %s: %w", messageID, err)
	}
	return nil
}

// DeleteMessage removes a message from the channel.
func (m *Messenger) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := m.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to delete message %s: %w", messageID, err)
	}
	return nil
}
