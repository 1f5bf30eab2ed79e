package announce

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Messenger is the channel-messaging side of the chat gateway.
type Messenger interface {
	// ResolveChannel verifies the channel exists and is reachable.
	ResolveChannel(ctx context.Context, channelID string) error
	// Send posts text to the channel and returns the new message's ID.
	Send(ctx context.Context, channelID, text string) (string, error)
	// FetchMessage verifies a previously-sent message still exists.
	FetchMessage(ctx context.Context, channelID, messageID string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// Record maps source event IDs to the ID of their currently live
// announcement message. It lives only in process memory and starts empty on
// every restart; entries are overwritten, never appended.
type Record struct {
	mu       sync.Mutex
	messages map[string]string
}

// NewRecord creates an empty Record.
func NewRecord() *Record {
	return &Record{messages: make(map[string]string)}
}

// Get returns the live message ID for a source event, if any.
func (r *Record) Get(sourceEventID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.messages[sourceEventID]
	return id, ok
}

// Put replaces the live message ID for a source event.
func (r *Record) Put(sourceEventID, messageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[sourceEventID] = messageID
}

// Tracker maintains at most one live announcement message per source event.
// Each announce deletes the event's prior message before posting the new
// one; editing in place is deliberately not used.
type Tracker struct {
	logger    *slog.Logger
	messenger Messenger
	record    *Record

	// Announces for the same event ID are serialized so interleaved calls
	// cannot delete each other's message or leave two live announcements.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewTracker creates a Tracker over the given record.
func NewTracker(logger *slog.Logger, messenger Messenger, record *Record) *Tracker {
	return &Tracker{
		logger:    logger,
		messenger: messenger,
		record:    record,
		locks:     make(map[string]*sync.Mutex),
	}
}

// Announce posts text as the live announcement for sourceEventID, removing
// the previous announcement first. Failure to remove a stale message is
// logged and swallowed; an unresolvable channel fails the whole call with
// the record left unchanged.
func (t *Tracker) Announce(ctx context.Context, channelID, text, sourceEventID string) (string, error) {
	lock := t.eventLock(sourceEventID)
	lock.Lock()
	defer lock.Unlock()

	if err := t.messenger.ResolveChannel(ctx, channelID); err != nil {
		return "", fmt.Errorf("failed to resolve channel %s: %w", channelID, err)
	}

	if prevID, ok := t.record.Get(sourceEventID); ok {
		t.deletePrevious(ctx, channelID, prevID, sourceEventID)
	}

	messageID, err := t.messenger.Send(ctx, channelID, text)
	if err != nil {
		return "", fmt.Errorf("failed to send announcement for event %s: %w", sourceEventID, err)
	}

	t.record.Put(sourceEventID, messageID)
	t.logger.Info("Sent announcement", "eventID", sourceEventID, "messageID", messageID)
	return messageID, nil
}

// deletePrevious best-effort removes the prior announcement. The message
// may already be gone or undeletable; neither blocks the new announcement.
func (t *Tracker) deletePrevious(ctx context.Context, channelID, messageID, sourceEventID string) {
	if err := t.messenger.FetchMessage(ctx, channelID, messageID); err != nil {
		t.logger.Warn("Previous announcement already gone", "eventID", sourceEventID, "messageID", messageID, "error", err)
		return
	}
	if err := t.messenger.DeleteMessage(ctx, channelID, messageID); err != nil {
		t.logger.Warn("Failed to delete previous announcement", "eventID", sourceEventID, "messageID", messageID, "error", err)
		return
	}
	t.logger.Info("Deleted previous announcement", "eventID", sourceEventID, "messageID", messageID)
}

func (t *Tracker) eventLock(sourceEventID string) *sync.Mutex {
	t.locksMu.Lock()
	defer t.locksMu.Unlock()
	lock, ok := t.locks[sourceEventID]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[sourceEventID] = lock
	}
	return lock
}
