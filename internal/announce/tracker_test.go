package announce

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
)

// fakeMessenger is an in-memory channel. It is safe for concurrent use so
// the serialization test can hammer it.
type fakeMessenger struct {
	mu       sync.Mutex
	messages map[string]string
	nextID   int

	resolveErr error
	sendErr    error
	deleteErr  error

	deleteCalls int
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{messages: make(map[string]string)}
}

func (m *fakeMessenger) ResolveChannel(context.Context, string) error {
	return m.resolveErr
}

func (m *fakeMessenger) Send(_ context.Context, _, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.nextID++
	id := fmt.Sprintf("msg-%d", m.nextID)
	m.messages[id] = text
	return id, nil
}

func (m *fakeMessenger) FetchMessage(_ context.Context, _, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[messageID]; !ok {
		return fmt.Errorf("unknown message %s", messageID)
	}
	return nil
}

func (m *fakeMessenger) DeleteMessage(_ context.Context, _, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.messages, messageID)
	return nil
}

func (m *fakeMessenger) liveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func testTracker(m Messenger) *Tracker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTracker(logger, m, NewRecord())
}

func TestAnnounceRecordsMessage(t *testing.T) {
	m := newFakeMessenger()
	tracker := testTracker(m)

	id, err := tracker.Announce(context.Background(), "chan-1", "hello", "evt-1")
	if err != nil {
		t.Fatalf("Announce failed: %v", err)
	}
	if got, ok := tracker.record.Get("evt-1"); !ok || got != id {
		t.Errorf("record = %q (%v), want %q", got, ok, id)
	}
	if m.messages[id] != "hello" {
		t.Errorf("message content = %q", m.messages[id])
	}
}

func TestSecondAnnounceReplacesFirst(t *testing.T) {
	m := newFakeMessenger()
	tracker := testTracker(m)

	first, err := tracker.Announce(context.Background(), "chan-1", "created", "evt-1")
	if err != nil {
		t.Fatalf("first Announce failed: %v", err)
	}
	second, err := tracker.Announce(context.Background(), "chan-1", "updated", "evt-1")
	if err != nil {
		t.Fatalf("second Announce failed: %v", err)
	}

	if m.liveCount() != 1 {
		t.Fatalf("live message count = %d, want 1", m.liveCount())
	}
	if _, ok := m.messages[first]; ok {
		t.Error("first announcement should have been deleted")
	}
	if m.messages[second] != "updated" {
		t.Errorf("live content = %q, want the second announcement", m.messages[second])
	}
}

func TestAnnouncesForDifferentEventsCoexist(t *testing.T) {
	m := newFakeMessenger()
	tracker := testTracker(m)

	if _, err := tracker.Announce(context.Background(), "chan-1", "a", "evt-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := tracker.Announce(context.Background(), "chan-1", "b", "evt-2"); err != nil {
		t.Fatal(err)
	}
	if m.liveCount() != 2 {
		t.Errorf("live message count = %d, want 2", m.liveCount())
	}
}

func TestStaleMessageMissingIsSwallowed(t *testing.T) {
	m := newFakeMessenger()
	tracker := testTracker(m)

	first, err := tracker.Announce(context.Background(), "chan-1", "created", "evt-1")
	if err != nil {
		t.Fatalf("Announce failed: %v", err)
	}

	// Someone removed the announcement out of band.
	delete(m.messages, first)

	if _, err := tracker.Announce(context.Background(), "chan-1", "updated", "evt-1"); err != nil {
		t.Fatalf("Announce after stale message failed: %v", err)
	}
	if m.deleteCalls != 0 {
		t.Errorf("deleteCalls = %d, want 0 when the fetch already failed", m.deleteCalls)
	}
	if m.liveCount() != 1 {
		t.Errorf("live message count = %d, want 1", m.liveCount())
	}
}

func TestDeleteFailureDoesNotBlockSend(t *testing.T) {
	m := newFakeMessenger()
	tracker := testTracker(m)

	if _, err := tracker.Announce(context.Background(), "chan-1", "created", "evt-1"); err != nil {
		t.Fatalf("Announce failed: %v", err)
	}

	m.deleteErr = fmt.Errorf("missing permissions")
	id, err := tracker.Announce(context.Background(), "chan-1", "updated", "evt-1")
	if err != nil {
		t.Fatalf("Announce with failing delete failed: %v", err)
	}
	if got, _ := tracker.record.Get("evt-1"); got != id {
		t.Errorf("record = %q, want the new message %q", got, id)
	}
}

func TestChannelUnresolvedFailsAndKeepsRecord(t *testing.T) {
	m := newFakeMessenger()
	tracker := testTracker(m)

	first, err := tracker.Announce(context.Background(), "chan-1", "created", "evt-1")
	if err != nil {
		t.Fatalf("Announce failed: %v", err)
	}

	m.resolveErr = fmt.Errorf("no such channel")
	if _, err := tracker.Announce(context.Background(), "chan-1", "updated", "evt-1"); err == nil {
		t.Fatal("expected an error when the channel cannot be resolved")
	}
	if got, _ := tracker.record.Get("evt-1"); got != first {
		t.Errorf("record = %q, want untouched %q", got, first)
	}
	if m.messages[first] != "created" {
		t.Error("existing announcement should be untouched")
	}
}

func TestSendFailureLeavesRecordUnchanged(t *testing.T) {
	m := newFakeMessenger()
	tracker := testTracker(m)

	if _, err := tracker.Announce(context.Background(), "chan-1", "created", "evt-1"); err != nil {
		t.Fatalf("Announce failed: %v", err)
	}
	first, _ := tracker.record.Get("evt-1")

	m.sendErr = fmt.Errorf("gateway hiccup")
	if _, err := tracker.Announce(context.Background(), "chan-1", "updated", "evt-1"); err == nil {
		t.Fatal("expected an error when send fails")
	}
	if got, _ := tracker.record.Get("evt-1"); got != first {
		t.Errorf("record = %q, want %q", got, first)
	}
}

func TestConcurrentAnnouncesLeaveOneLiveMessage(t *testing.T) {
	m := newFakeMessenger()
	tracker := testTracker(m)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := tracker.Announce(context.Background(), "chan-1", fmt.Sprintf("update %d", i), "evt-1"); err != nil {
				t.Errorf("Announce failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if m.liveCount() != 1 {
		t.Errorf("live message count = %d, want 1", m.liveCount())
	}
	id, ok := tracker.record.Get("evt-1")
	if !ok {
		t.Fatal("no record after announces")
	}
	if _, live := m.messages[id]; !live {
		t.Error("recorded message is not the live one")
	}
}
