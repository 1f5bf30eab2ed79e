package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"discal/internal/models"
	"discal/internal/syncer"
)

// customTransport handles adding Basic Auth and custom headers to requests.
type customTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "discal/1.0")
	return t.Transport.RoundTrip(req)
}

// Client is an authorized session against a single CalDAV calendar
// collection. It implements syncer.Service; entry IDs are iCal UIDs.
type Client struct {
	caldavClient *caldav.Client
	webdavClient *webdav.Client
	logger       *slog.Logger
	calendarPath string
}

// Authorizer connects to the CalDAV server and discovers the target
// calendar on first use, caching the resulting session. It implements
// syncer.Authorizer.
type Authorizer struct {
	logger       *slog.Logger
	endpoint     string
	username     string
	password     string
	calendarName string

	mu     sync.Mutex
	cached *Client
}

// NewAuthorizer creates an Authorizer for the named calendar on the given
// CalDAV endpoint.
func NewAuthorizer(logger *slog.Logger, endpoint, username, password, calendarName string) *Authorizer {
	return &Authorizer{
		logger:       logger,
		endpoint:     endpoint,
		username:     username,
		password:     password,
		calendarName: calendarName,
	}
}

// Authorize returns the cached session, running calendar discovery on the
// first call.
func (a *Authorizer) Authorize(ctx context.Context) (syncer.Service, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached != nil {
		return a.cached, nil
	}

	transport := &customTransport{
		Username:  a.username,
		Password:  a.password,
		Transport: http.DefaultTransport,
	}
	httpClient := &http.Client{Transport: transport}

	caldavClient, err := caldav.NewClient(httpClient, a.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	webdavClient, err := webdav.NewClient(httpClient, a.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}

	c := &Client{
		caldavClient: caldavClient,
		webdavClient: webdavClient,
		logger:       a.logger,
	}

	a.logger.Info("Finding CalDAV calendar", "calendarName", a.calendarName)
	calendarPath, err := c.findCalendar(ctx, a.calendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", a.calendarName, err)
	}
	c.calendarPath = calendarPath
	a.logger.Info("Successfully found CalDAV calendar", "path", calendarPath)

	a.cached = c
	return c, nil
}

// Insert writes a new entry to the collection under a fresh UID.
func (c *Client) Insert(ctx context.Context, entry *models.CalendarEntry) (*models.CalendarEntry, error) {
	created := *entry
	created.ID = uuid.New().String()
	if err := c.put(ctx, &created); err != nil {
		return nil, fmt.Errorf("failed to create entry on CalDAV server: %w", err)
	}
	c.logger.Debug("Created CalDAV entry", "uid", created.ID, "summary", created.Summary)
	return &created, nil
}

// Search reports VEVENTs whose summary text-matches name. The server-side
// match is substring-based, so callers must re-check for exact equality.
func (c *Client) Search(ctx context.Context, name string) ([]*models.CalendarEntry, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name: ical.CompEvent,
				Props: []caldav.PropFilter{{
					Name:      ical.PropSummary,
					TextMatch: &caldav.TextMatch{Text: name},
				}},
			}},
		},
	}

	objects, err := c.caldavClient.QueryCalendar(ctx, c.calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query CalDAV calendar: %w", err)
	}

	var entries []*models.CalendarEntry
	for _, obj := range objects {
		entry, err := fromCalendarObject(obj.Data)
		if err != nil {
			c.logger.Warn("Skipping unreadable calendar object", "path", obj.Path, "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	c.logger.Debug("Searched CalDAV calendar", "query", name, "count", len(entries))
	return entries, nil
}

// Update overwrites the entry stored under the given UID.
func (c *Client) Update(ctx context.Context, id string, entry *models.CalendarEntry) (*models.CalendarEntry, error) {
	updated := *entry
	updated.ID = id
	if err := c.put(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to update entry %s on CalDAV server: %w", id, err)
	}
	return &updated, nil
}

// Delete removes the entry stored under the given UID.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.webdavClient.RemoveAll(ctx, c.objectPath(id)); err != nil {
		return fmt.Errorf("failed to delete entry %s from CalDAV server: %w", id, err)
	}
	return nil
}

// put uploads the entry as a single-event iCal resource. PUT semantics
// cover both create and replace.
func (c *Client) put(ctx context.Context, entry *models.CalendarEntry) error {
	cal := toCalendarObject(entry)

	writer, err := c.webdavClient.Create(ctx, c.objectPath(entry.ID))
	if err != nil {
		return err
	}
	defer writer.Close()

	return ical.NewEncoder(writer).Encode(cal)
}

func (c *Client) objectPath(id string) string {
	return path.Join(c.calendarPath, fmt.Sprintf("%s.ics", id))
}

// toCalendarObject converts an internal entry to a VCALENDAR wrapping one
// VEVENT.
func toCalendarObject(entry *models.CalendarEntry) *ical.Calendar {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, entry.ID)
	ve.Props.SetText(ical.PropSummary, entry.Summary)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, entry.Start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, entry.End.UTC())

	if entry.Description != "" {
		ve.Props.SetText(ical.PropDescription, entry.Description)
	}
	if entry.Location != "" {
		ve.Props.SetText(ical.PropLocation, entry.Location)
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//discal//EN")
	cal.Children = append(cal.Children, ve)
	return cal
}

// fromCalendarObject extracts the first VEVENT of a calendar object into an
// internal entry.
func fromCalendarObject(cal *ical.Calendar) (*models.CalendarEntry, error) {
	for _, child := range cal.Children {
		if child.Name != ical.CompEvent {
			continue
		}

		entry := &models.CalendarEntry{}
		if prop := child.Props.Get(ical.PropUID); prop != nil {
			entry.ID, _ = prop.Text()
		}
		if prop := child.Props.Get(ical.PropSummary); prop != nil {
			entry.Summary, _ = prop.Text()
		}
		if prop := child.Props.Get(ical.PropDescription); prop != nil {
			entry.Description, _ = prop.Text()
		}
		if prop := child.Props.Get(ical.PropLocation); prop != nil {
			entry.Location, _ = prop.Text()
		}
		if prop := child.Props.Get(ical.PropDateTimeStart); prop != nil {
			entry.Start, _ = prop.DateTime(time.UTC)
		}
		if prop := child.Props.Get(ical.PropDateTimeEnd); prop != nil {
			entry.End, _ = prop.DateTime(time.UTC)
		}
		return entry, nil
	}
	return nil, fmt.Errorf("calendar object contains no VEVENT")
}

// findCalendar discovers the user's calendars and returns the path of the
// one with the matching name.
func (c *Client) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := c.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s'", name)
}
