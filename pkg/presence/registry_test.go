package presence_test

import (
	"log/slog"
	"os"
	"testing"

	"github.com/Deepayon/LocalSeva/pkg/presence"
	"github.com/google/uuid"
)

func newTestLogger() *slog.Logger {
	// Discard logger output during tests by setting a high level
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

type fakeConn struct {
	id     uuid.UUID
	closed bool
}

func newFakeConn() *fakeConn            { return &fakeConn{id: uuid.New()} }
func (c *fakeConn) ID() uuid.UUID       { return c.id }
func (c *fakeConn) Send(message []byte) {}
func (c *fakeConn) Close(err error)     { c.closed = true }

func TestRegisterAndLookup(t *testing.T) {
	r := presence.NewRegistry(newTestLogger())
	conn := newFakeConn()

	r.Register("42", conn)

	got, found := r.Lookup("42")
	if !found {
		t.Fatal("Lookup failed to find registered user")
	}
	if got.ID() != conn.ID() {
		t.Errorf("Lookup returned wrong connection: got %s, want %s", got.ID(), conn.ID())
	}
	if _, found := r.Lookup("99"); found {
		t.Error("Lookup found a user that was never registered")
	}
}

func TestLastConnectionWins(t *testing.T) {
	r := presence.NewRegistry(newTestLogger())
	conn1 := newFakeConn()
	conn2 := newFakeConn()

	// Two connections authenticate as the same user sequentially.
	r.Register("42", conn1)
	r.Register("42", conn2)

	got, found := r.Lookup("42")
	if !found {
		t.Fatal("Lookup failed after re-registration")
	}
	if got.ID() != conn2.ID() {
		t.Errorf("Expected the second connection to win, got %s", got.ID())
	}

	// The superseded connection's disconnect must not evict the newer
	// mapping.
	r.Unregister(conn1.ID())
	got, found = r.Lookup("42")
	if !found {
		t.Fatal("Stale unregister removed the live mapping")
	}
	if got.ID() != conn2.ID() {
		t.Errorf("Expected conn2 to remain registered, got %s", got.ID())
	}
}

func TestUnregisterRemovesOwnMapping(t *testing.T) {
	r := presence.NewRegistry(newTestLogger())
	conn := newFakeConn()

	r.Register("42", conn)
	r.Unregister(conn.ID())

	if _, found := r.Lookup("42"); found {
		t.Error("Lookup found user after their connection unregistered")
	}
	if r.Count() != 0 {
		t.Errorf("Expected empty registry, got %d entries", r.Count())
	}
}

func TestUnregisterUnknownConnectionIsNoop(t *testing.T) {
	r := presence.NewRegistry(newTestLogger())
	conn := newFakeConn()
	r.Register("42", conn)

	r.Unregister(uuid.New())

	if _, found := r.Lookup("42"); !found {
		t.Error("Unregister of an unknown connection removed a live mapping")
	}
}

func TestCount(t *testing.T) {
	r := presence.NewRegistry(newTestLogger())
	if r.Count() != 0 {
		t.Fatalf("Expected 0, got %d", r.Count())
	}
	r.Register("1", newFakeConn())
	r.Register("2", newFakeConn())
	r.Register("1", newFakeConn()) // overwrite, not a new entry
	if r.Count() != 2 {
		t.Errorf("Expected 2 registered users, got %d", r.Count())
	}
}
