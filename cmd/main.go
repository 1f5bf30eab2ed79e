package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"discal/internal/announce"
	"discal/internal/caldav"
	"discal/internal/config"
	"discal/internal/discord"
	"discal/internal/google"
	"discal/internal/syncer"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "discal",
		Usage: "Mirror Discord scheduled events into a calendar and announce each change.",
		Commands: []*cli.Command{
			authCommand(),
			runCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get an API token.",
		Action: func(c *cli.Context) error {
			logger := setupLogger("info")
			logger.Info("Starting Google authentication flow.")

			oauthConfig, err := google.GetOAuthConfigForAuthFlow(os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"))
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(oauthConfig, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			tokenFile := os.Getenv("GOOGLE_TOKEN_FILE")
			if tokenFile == "" {
				tokenFile = "token.json"
			}
			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Connect to the Discord gateway and mirror scheduled events.",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)

			var auth syncer.Authorizer
			switch cfg.CalendarBackend {
			case config.BackendGoogle:
				auth = google.NewAuthorizer(logger, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleTokenFile, cfg.CalendarID)
			case config.BackendCalDAV:
				auth = caldav.NewAuthorizer(logger, cfg.CalDAVEndpoint, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.CalendarID)
			}
			logger.Info("Using calendar backend", "backend", cfg.CalendarBackend, "calendarID", cfg.CalendarID)

			session, err := discord.NewSession(cfg.DiscordToken)
			if err != nil {
				return fmt.Errorf("failed to create discord session: %w", err)
			}

			messenger := discord.NewMessenger(logger, session)
			tracker := announce.NewTracker(logger, messenger, announce.NewRecord())
			orchestrator := syncer.NewOrchestrator(logger, auth, syncer.NewCalendarSync(logger), tracker, cfg.ChannelID)
			gateway := discord.NewGateway(logger, session, orchestrator)

			if err := gateway.Start(); err != nil {
				return err
			}
			defer func() {
				if err := gateway.Stop(); err != nil {
					logger.Error("Failed to close gateway connection", "error", err)
				}
			}()

			logger.Info("Mirroring scheduled events. Press Ctrl+C to exit.")
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			logger.Info("Shutting down.")
			return nil
		},
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
