package models

import "time"

// SourceEvent is a scheduled event as delivered by the Discord gateway.
// This is an internal representation, independent of the gateway library.
// Optional fields use their zero value when the source did not supply them.
type SourceEvent struct {
	ID          string    // Stable identifier assigned by Discord
	Name        string    // Display name, used as the cross-system join key
	Description string    // Free-form description, may be empty
	StartTime   time.Time // Scheduled start, zero if not set
	EndTime     time.Time // Scheduled end, zero if not set
	Location    string    // External location, empty for voice/stage events
}

// CalendarEntry is a record in the remote calendar service. Entries are
// never persisted locally; every operation re-fetches them by search.
type CalendarEntry struct {
	ID          string    // Service-assigned identifier
	Summary     string    // Matches SourceEvent.Name for mirrored events
	Description string
	Start       time.Time
	End         time.Time
	Location    string
	HTMLLink    string // Browser link to the entry, if the service provides one
}

// NotificationKind identifies a lifecycle transition of a source event.
type NotificationKind int

const (
	EventCreated NotificationKind = iota
	EventUpdated
	EventDeleted
)

// String returns the lowercase name of the kind, for logging.
func (k NotificationKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventUpdated:
		return "updated"
	case EventDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Notification is a single lifecycle transition for a source event.
// Previous is only set on updates, and only when the gateway had the prior
// state cached.
type Notification struct {
	Kind     NotificationKind
	Event    SourceEvent
	Previous *SourceEvent
}
