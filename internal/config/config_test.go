package config

import (
	"strings"
	"testing"
)

func setBaseEnv(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "bot-token")
	t.Setenv("CALENDAR_ID", "primary")
	t.Setenv("CHANNEL_ID", "1234567890")
	t.Setenv("CALENDAR_BACKEND", "")
	t.Setenv("GOOGLE_TOKEN_FILE", "")
	t.Setenv("CALDAV_ENDPOINT", "")
	t.Setenv("CALDAV_USERNAME", "")
	t.Setenv("CALDAV_PASSWORD", "")
	t.Setenv("LOG_LEVEL", "")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.CalendarBackend != BackendGoogle {
		t.Errorf("backend = %q, want google default", cfg.CalendarBackend)
	}
	if cfg.GoogleTokenFile != "token.json" {
		t.Errorf("token file = %q", cfg.GoogleTokenFile)
	}
	if cfg.CalDAVEndpoint != "https://caldav.icloud.com/" {
		t.Errorf("caldav endpoint = %q", cfg.CalDAVEndpoint)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
}

func TestLoadMissingRequiredVars(t *testing.T) {
	cases := []string{"DISCORD_TOKEN", "CALENDAR_ID", "CHANNEL_ID"}
	for _, name := range cases {
		t.Run(name, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(name, "")

			if _, err := Load(); err == nil || !strings.Contains(err.Error(), name) {
				t.Errorf("Load() error = %v, want mention of %s", err, name)
			}
		})
	}
}

func TestLoadCalDAVBackendRequiresCredentials(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("CALENDAR_BACKEND", "caldav")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error without caldav credentials")
	}

	t.Setenv("CALDAV_USERNAME", "user@example.com")
	t.Setenv("CALDAV_PASSWORD", "app-specific")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.CalendarBackend != BackendCalDAV {
		t.Errorf("backend = %q", cfg.CalendarBackend)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("CALENDAR_BACKEND", "outlook")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
}
