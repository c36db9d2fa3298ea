package identity

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

type fakeStore struct {
	sessions map[string]*Session
	users    map[string]*User
	err      error // returned by every lookup when set
}

func (s *fakeStore) LookupSession(ctx context.Context, token string) (*Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	session, ok := s.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}
	return session, nil
}

func (s *fakeStore) LookupUser(ctx context.Context, userID string) (*User, error) {
	if s.err != nil {
		return nil, s.err
	}
	user, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return user, nil
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: map[string]*Session{
			"good-token":    {UserID: "42", Expires: time.Now().Add(time.Hour)},
			"expired-token": {UserID: "42", Expires: time.Now().Add(-time.Minute)},
		},
		users: map[string]*User{
			"42": {ID: "42", Name: "Asha", Role: "USER", NeighborhoodID: "sector2"},
		},
	}
}

func TestSessionValidatorSuccess(t *testing.T) {
	v := NewSessionValidator(newFakeStore(), newTestLogger())

	id, err := v.Validate(context.Background(), "good-token")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if id.UserID != "42" || id.Role != "USER" || id.NeighborhoodID != "sector2" {
		t.Errorf("Wrong identity: %+v", id)
	}
}

func TestSessionValidatorExpired(t *testing.T) {
	v := NewSessionValidator(newFakeStore(), newTestLogger())

	_, err := v.Validate(context.Background(), "expired-token")
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("Expected ErrInvalidCredential, got %v", err)
	}
}

func TestSessionValidatorUnknownToken(t *testing.T) {
	v := NewSessionValidator(newFakeStore(), newTestLogger())

	_, err := v.Validate(context.Background(), "nope")
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("Expected ErrInvalidCredential, got %v", err)
	}
}

func TestSessionValidatorEmptyCredential(t *testing.T) {
	v := NewSessionValidator(newFakeStore(), newTestLogger())

	_, err := v.Validate(context.Background(), "")
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("Expected ErrInvalidCredential, got %v", err)
	}
}

func TestSessionValidatorStoreOutageCollapses(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("connection refused")
	v := NewSessionValidator(store, newTestLogger())

	// Infrastructure failure must look exactly like a bad credential.
	_, err := v.Validate(context.Background(), "good-token")
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("Expected ErrInvalidCredential, got %v", err)
	}
}

func TestSessionValidatorMissingUserRow(t *testing.T) {
	store := newFakeStore()
	store.sessions["orphan"] = &Session{UserID: "404", Expires: time.Now().Add(time.Hour)}
	v := NewSessionValidator(store, newTestLogger())

	_, err := v.Validate(context.Background(), "orphan")
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("Expected ErrInvalidCredential, got %v", err)
	}
}

func TestDisplayNameFallback(t *testing.T) {
	id := &Identity{UserID: "42"}
	if got := id.DisplayName(); got != "Anonymous" {
		t.Errorf("Expected Anonymous, got %q", got)
	}
	id.Name = "Asha"
	if got := id.DisplayName(); got != "Asha" {
		t.Errorf("Expected Asha, got %q", got)
	}
}
