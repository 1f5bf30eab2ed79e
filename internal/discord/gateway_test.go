package discord

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

func TestFromGuildScheduledEvent(t *testing.T) {
	start := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	ev := &discordgo.GuildScheduledEvent{
		ID:                 "1325",
		Name:               "Movie Night",
		Description:        "Bring snacks",
		ScheduledStartTime: start,
		ScheduledEndTime:   &end,
		EntityMetadata:     discordgo.GuildScheduledEventEntityMetadata{Location: "Community Hall"},
	}

	got := fromGuildScheduledEvent(ev)
	if got.ID != "1325" || got.Name != "Movie Night" || got.Description != "Bring snacks" {
		t.Errorf("unexpected fields: %+v", got)
	}
	if !got.StartTime.Equal(start) || !got.EndTime.Equal(end) {
		t.Errorf("times not carried over: %+v", got)
	}
	if got.Location != "Community Hall" {
		t.Errorf("location = %q", got.Location)
	}
}

func TestFromGuildScheduledEventOptionalFields(t *testing.T) {
	ev := &discordgo.GuildScheduledEvent{
		ID:                 "1326",
		Name:               "Voice Hangout",
		ScheduledStartTime: time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC),
	}

	got := fromGuildScheduledEvent(ev)
	if !got.EndTime.IsZero() {
		t.Errorf("end time = %v, want zero", got.EndTime)
	}
	if got.Description != "" || got.Location != "" {
		t.Errorf("optional fields should stay empty: %+v", got)
	}
}
