package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"discal/internal/models"
	"discal/internal/syncer"
)

const (
	credentialsFile = "credentials.json"
	entryTimeZone   = "UTC"
)

// Client provides an authorized session against a single Google calendar.
// It implements syncer.Service.
type Client struct {
	service    *calendar.Service
	calendarID string
	logger     *slog.Logger
}

// Authorizer builds the Google calendar session on first use and caches it
// for later notifications. It implements syncer.Authorizer.
type Authorizer struct {
	logger       *slog.Logger
	clientID     string
	clientSecret string
	tokenFile    string
	calendarID   string

	mu     sync.Mutex
	cached *Client
}

// NewAuthorizer creates an Authorizer for the given calendar. The token
// file must already exist; run the 'auth' command to create it.
func NewAuthorizer(logger *slog.Logger, clientID, clientSecret, tokenFile, calendarID string) *Authorizer {
	return &Authorizer{
		logger:       logger,
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenFile:    tokenFile,
		calendarID:   calendarID,
	}
}

// Authorize returns the cached session, constructing it from the saved
// token on the first call.
func (a *Authorizer) Authorize(ctx context.Context) (syncer.Service, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached != nil {
		return a.cached, nil
	}

	config, err := getOAuthConfig(a.clientID, a.clientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}

	token, err := tokenFromFile(a.tokenFile)
	if err != nil {
		return nil, fmt.Errorf("could not load token from %s: %w. Please run the 'auth' command first", a.tokenFile, err)
	}

	httpClient := config.Client(ctx, token)
	service, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	a.logger.Info("Authorized Google Calendar session", "calendarID", a.calendarID)
	a.cached = &Client{service: service, calendarID: a.calendarID, logger: a.logger}
	return a.cached, nil
}

// Insert creates a new entry in the calendar.
func (c *Client) Insert(ctx context.Context, entry *models.CalendarEntry) (*models.CalendarEntry, error) {
	created, err := c.service.Events.Insert(c.calendarID, toGoogleEvent(entry)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}
	c.logger.Debug("Inserted Google Calendar event", "id", created.Id, "link", created.HtmlLink)
	return fromGoogleEvent(created), nil
}

// Search lists entries matching name. The q parameter is a free-text
// filter, so results may include entries whose summary differs.
func (c *Client) Search(ctx context.Context, name string) ([]*models.CalendarEntry, error) {
	events, err := c.service.Events.List(c.calendarID).Q(name).SingleEvents(true).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	var entries []*models.CalendarEntry
	for _, item := range events.Items {
		entries = append(entries, fromGoogleEvent(item))
	}
	c.logger.Debug("Searched Google Calendar", "query", name, "count", len(entries))
	return entries, nil
}

// Update replaces the entry with the given ID.
func (c *Client) Update(ctx context.Context, id string, entry *models.CalendarEntry) (*models.CalendarEntry, error) {
	updated, err := c.service.Events.Update(c.calendarID, id, toGoogleEvent(entry)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to update event %s: %w", id, err)
	}
	return fromGoogleEvent(updated), nil
}

// Delete removes the entry with the given ID.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.service.Events.Delete(c.calendarID, id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete event %s: %w", id, err)
	}
	return nil
}

// toGoogleEvent converts the internal entry to the calendar API shape.
// Both instants are expressed in UTC.
func toGoogleEvent(entry *models.CalendarEntry) *calendar.Event {
	return &calendar.Event{
		Summary:     entry.Summary,
		Description: entry.Description,
		Location:    entry.Location,
		Start: &calendar.EventDateTime{
			DateTime: entry.Start.UTC().Format(time.RFC3339),
			TimeZone: entryTimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: entry.End.UTC().Format(time.RFC3339),
			TimeZone: entryTimeZone,
		},
	}
}

// fromGoogleEvent converts a calendar API event to the internal entry.
// All-day events carry only a date, which leaves the instant zero.
func fromGoogleEvent(item *calendar.Event) *models.CalendarEntry {
	entry := &models.CalendarEntry{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		HTMLLink:    item.HtmlLink,
	}
	if item.Start != nil && item.Start.DateTime != "" {
		entry.Start, _ = time.Parse(time.RFC3339, item.Start.DateTime)
	}
	if item.End != nil && item.End.DateTime != "" {
		entry.End, _ = time.Parse(time.RFC3339, item.End.DateTime)
	}
	return entry
}

// GetOAuthConfigForAuthFlow is used by the auth command to get the config
// for the web flow.
func GetOAuthConfigForAuthFlow(clientID, clientSecret string) (*oauth2.Config, error) {
	return getOAuthConfig(clientID, clientSecret)
}

// getOAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes environment variables over a local credentials.json file.
func getOAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
			Scopes:       []string{calendar.CalendarScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the root directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = "urn:ietf:wg:oauth:2.0:oob" // For desktop app flow
	return config, nil
}

// TokenFromWeb is called by the auth flow to retrieve a token.
func TokenFromWeb(config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(context.Background(), authCode)
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}
