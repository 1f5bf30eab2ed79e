package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"discal/internal/models"
)

// Service is an authorized session against the calendar service. All calls
// are remote and may fail; none are assumed atomic relative to each other.
type Service interface {
	Insert(ctx context.Context, entry *models.CalendarEntry) (*models.CalendarEntry, error)
	// Search returns candidate entries for a name. The query is a
	// best-effort filter on the service side; callers must re-check the
	// summary before trusting a match.
	Search(ctx context.Context, name string) ([]*models.CalendarEntry, error)
	Update(ctx context.Context, id string, entry *models.CalendarEntry) (*models.CalendarEntry, error)
	Delete(ctx context.Context, id string) error
}

// Authorizer produces an authorized calendar session, returning a cached
// one when still valid. The exchange may be slow and may fail.
type Authorizer interface {
	Authorize(ctx context.Context) (Service, error)
}

const (
	fallbackDescription = "Discord Event"
	fallbackLocation    = "Online"
	defaultDuration     = time.Hour
)

// CalendarSync translates source-event lifecycle changes into calendar
// operations. It holds no state between calls; the calendar's own search is
// the source of truth for which entry belongs to which event name.
type CalendarSync struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewCalendarSync creates a CalendarSync.
func NewCalendarSync(logger *slog.Logger) *CalendarSync {
	return &CalendarSync{logger: logger, now: time.Now}
}

// HandleCreated inserts a new calendar entry for the event.
func (s *CalendarSync) HandleCreated(ctx context.Context, event models.SourceEvent, session Service) (*models.CalendarEntry, error) {
	entry := s.buildEntry(event, true)

	created, err := session.Insert(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to insert calendar entry for %q: %w", event.Name, err)
	}

	s.logger.Info("Created calendar entry", "summary", created.Summary, "id", created.ID, "link", created.HTMLLink)
	return created, nil
}

// HandleUpdated replaces the calendar entry matching the event's name. An
// update for a name with no matching entry falls back to a create.
func (s *CalendarSync) HandleUpdated(ctx context.Context, event models.SourceEvent, session Service) (*models.CalendarEntry, error) {
	match, err := s.findByName(ctx, event.Name, session)
	if err != nil {
		return nil, err
	}
	if match == nil {
		s.logger.Info("No calendar entry found for updated event, creating one", "name", event.Name)
		return s.HandleCreated(ctx, event, session)
	}

	// Update notifications carry both timestamps, so the entry is rebuilt
	// from the event verbatim with no defaults.
	entry := s.buildEntry(event, false)
	updated, err := session.Update(ctx, match.ID, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to update calendar entry %s for %q: %w", match.ID, event.Name, err)
	}

	s.logger.Info("Updated calendar entry", "summary", updated.Summary, "id", updated.ID)
	return updated, nil
}

// HandleDeleted removes the calendar entry matching the event's name.
// No matching entry is a no-op, not an error.
func (s *CalendarSync) HandleDeleted(ctx context.Context, event models.SourceEvent, session Service) error {
	match, err := s.findByName(ctx, event.Name, session)
	if err != nil {
		return err
	}
	if match == nil {
		s.logger.Info("No calendar entry found for deleted event", "name", event.Name)
		return nil
	}

	if err := session.Delete(ctx, match.ID); err != nil {
		return fmt.Errorf("failed to delete calendar entry %s for %q: %w", match.ID, event.Name, err)
	}

	s.logger.Info("Deleted calendar entry", "summary", match.Summary, "id", match.ID)
	return nil
}

// findByName searches the calendar and returns the entry whose summary
// exactly equals name, or nil if there is none. When several entries share
// the summary, the one with the soonest start wins, with the entry ID as a
// final tiebreak, so repeated calls pick the same entry regardless of the
// service's return order.
func (s *CalendarSync) findByName(ctx context.Context, name string, session Service) (*models.CalendarEntry, error) {
	candidates, err := session.Search(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to search calendar for %q: %w", name, err)
	}

	var matches []*models.CalendarEntry
	for _, c := range candidates {
		if c.Summary == name {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}
	if len(matches) > 1 {
		s.logger.Warn("Multiple calendar entries share a summary, picking soonest start", "name", name, "count", len(matches))
		sort.Slice(matches, func(i, j int) bool {
			if !matches[i].Start.Equal(matches[j].Start) {
				return matches[i].Start.Before(matches[j].Start)
			}
			return matches[i].ID < matches[j].ID
		})
	}
	return matches[0], nil
}

// buildEntry maps a source event onto a calendar entry. With defaults
// enabled, a missing start becomes the current instant and a missing end
// becomes start plus one hour; both instants are kept in UTC.
func (s *CalendarSync) buildEntry(event models.SourceEvent, withDefaults bool) *models.CalendarEntry {
	start := event.StartTime
	end := event.EndTime
	if withDefaults {
		if start.IsZero() {
			start = s.now()
		}
		if end.IsZero() {
			end = start.Add(defaultDuration)
		}
	}

	description := event.Description
	if description == "" {
		description = fallbackDescription
	}
	location := event.Location
	if location == "" {
		location = fallbackLocation
	}

	return &models.CalendarEntry{
		Summary:     event.Name,
		Description: description,
		Start:       start.UTC(),
		End:         end.UTC(),
		Location:    location,
	}
}
