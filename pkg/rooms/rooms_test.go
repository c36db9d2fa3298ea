package rooms_test

import (
	"log/slog"
	"os"
	"testing"

	"github.com/Deepayon/LocalSeva/pkg/rooms"
	"github.com/google/uuid"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

type fakeConn struct {
	id   uuid.UUID
	sent [][]byte
}

func newFakeConn() *fakeConn            { return &fakeConn{id: uuid.New()} }
func (c *fakeConn) ID() uuid.UUID       { return c.id }
func (c *fakeConn) Send(message []byte) { c.sent = append(c.sent, message) }
func (c *fakeConn) Close(err error)     {}

func TestJoinIsIdempotent(t *testing.T) {
	r := rooms.NewRouter(newTestLogger())
	conn := newFakeConn()

	r.Join(conn, "alert:abc")
	r.Join(conn, "alert:abc")

	if got := r.MemberCount("alert:abc"); got != 1 {
		t.Errorf("Expected 1 member after double join, got %d", got)
	}

	reached := r.Broadcast("alert:abc", []byte("x"))
	if reached != 1 {
		t.Errorf("Expected broadcast to reach 1 connection, reached %d", reached)
	}
	if len(conn.sent) != 1 {
		t.Errorf("Expected exactly 1 delivery after double join, got %d", len(conn.sent))
	}
}

func TestLeaveNonMemberIsNoop(t *testing.T) {
	r := rooms.NewRouter(newTestLogger())
	conn := newFakeConn()

	// Never an error, never a panic.
	r.Leave(conn.ID(), "alert:abc")

	r.Join(conn, "alert:abc")
	r.Leave(newFakeConn().ID(), "alert:abc")
	if got := r.MemberCount("alert:abc"); got != 1 {
		t.Errorf("Leave of a non-member changed membership: %d members", got)
	}
}

func TestBroadcastScope(t *testing.T) {
	r := rooms.NewRouter(newTestLogger())
	a := newFakeConn()
	b := newFakeConn()
	c := newFakeConn()

	r.Join(a, rooms.NeighborhoodRoom("sector2"))
	r.Join(b, rooms.NeighborhoodRoom("sector2"))
	r.Join(c, rooms.NeighborhoodRoom("sector3"))

	reached := r.Broadcast(rooms.NeighborhoodRoom("sector2"), []byte("alert"))
	if reached != 2 {
		t.Errorf("Expected to reach 2 members, reached %d", reached)
	}
	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Error("Members of the target room did not receive the broadcast")
	}
	if len(c.sent) != 0 {
		t.Error("Connection in a different neighborhood received the broadcast")
	}
}

func TestBroadcastUnknownRoom(t *testing.T) {
	r := rooms.NewRouter(newTestLogger())
	if reached := r.Broadcast("alert:nobody", []byte("x")); reached != 0 {
		t.Errorf("Expected 0 recipients for unknown room, got %d", reached)
	}
}

func TestDropRemovesAllMemberships(t *testing.T) {
	r := rooms.NewRouter(newTestLogger())
	conn := newFakeConn()
	other := newFakeConn()

	r.Join(conn, rooms.UserRoom("42"))
	r.Join(conn, rooms.NeighborhoodRoom("sector2"))
	r.Join(conn, rooms.AlertRoom("abc"))
	r.Join(other, rooms.AlertRoom("abc"))

	r.Drop(conn.ID())

	for _, room := range []string{rooms.UserRoom("42"), rooms.NeighborhoodRoom("sector2"), rooms.AlertRoom("abc")} {
		if r.InRoom(conn.ID(), room) {
			t.Errorf("Connection still in %s after Drop", room)
		}
	}
	if !r.InRoom(other.ID(), rooms.AlertRoom("abc")) {
		t.Error("Drop evicted an unrelated connection")
	}
}

func TestRoomNames(t *testing.T) {
	if got := rooms.UserRoom("42"); got != "user:42" {
		t.Errorf("UserRoom: got %q", got)
	}
	if got := rooms.NeighborhoodRoom("sector2"); got != "neighborhood:sector2" {
		t.Errorf("NeighborhoodRoom: got %q", got)
	}
	if got := rooms.AlertRoom("abc"); got != "alert:abc" {
		t.Errorf("AlertRoom: got %q", got)
	}
}
