package config

import (
	"fmt"
	"os"
)

// Calendar backend selectors for Config.CalendarBackend.
const (
	BackendGoogle = "google"
	BackendCalDAV = "caldav"
)

// Config holds the process-wide settings. It is read once at startup and
// never mutated afterwards.
type Config struct {
	DiscordToken string // Bot token for the gateway session
	CalendarID   string // Target calendar (Google calendar ID or CalDAV calendar name)
	ChannelID    string // Channel that receives announcements

	CalendarBackend string // BackendGoogle or BackendCalDAV

	GoogleClientID     string
	GoogleClientSecret string
	GoogleTokenFile    string

	CalDAVEndpoint string
	CalDAVUsername string
	CalDAVPassword string

	LogLevel string
}

const (
	defaultTokenFile      = "token.json"
	defaultCalDAVEndpoint = "https://caldav.icloud.com/"
)

// Load reads configuration from the environment. Callers are expected to
// have loaded any .env file beforehand.
func Load() (*Config, error) {
	cfg := &Config{
		DiscordToken:       os.Getenv("DISCORD_TOKEN"),
		CalendarID:         os.Getenv("CALENDAR_ID"),
		ChannelID:          os.Getenv("CHANNEL_ID"),
		CalendarBackend:    os.Getenv("CALENDAR_BACKEND"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleTokenFile:    os.Getenv("GOOGLE_TOKEN_FILE"),
		CalDAVEndpoint:     os.Getenv("CALDAV_ENDPOINT"),
		CalDAVUsername:     os.Getenv("CALDAV_USERNAME"),
		CalDAVPassword:     os.Getenv("CALDAV_PASSWORD"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
	}

	if cfg.CalendarBackend == "" {
		cfg.CalendarBackend = BackendGoogle
	}
	if cfg.GoogleTokenFile == "" {
		cfg.GoogleTokenFile = defaultTokenFile
	}
	if cfg.CalDAVEndpoint == "" {
		cfg.CalDAVEndpoint = defaultCalDAVEndpoint
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN environment variable not set")
	}
	if c.CalendarID == "" {
		return fmt.Errorf("CALENDAR_ID environment variable not set")
	}
	if c.ChannelID == "" {
		return fmt.Errorf("CHANNEL_ID environment variable not set")
	}

	switch c.CalendarBackend {
	case BackendGoogle:
		// Client ID and secret may also come from credentials.json, so
		// their absence is not checked here.
	case BackendCalDAV:
		if c.CalDAVUsername == "" || c.CalDAVPassword == "" {
			return fmt.Errorf("CALDAV_USERNAME and CALDAV_PASSWORD must be set for the caldav backend")
		}
	default:
		return fmt.Errorf("unknown CALENDAR_BACKEND %q", c.CalendarBackend)
	}
	return nil
}
