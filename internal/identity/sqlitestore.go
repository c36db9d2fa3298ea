package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore reads sessions and user profiles from the application's
// SQLite database. The queries mirror what the HTTP auth endpoints do:
// a session token maps to a user row with id, name, role and
// neighborhood id.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

func OpenSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	return &SQLiteStore{
		db:     db,
		logger: logger.With(slog.String("component", "identity_store_sqlite")),
	}, nil
}

func (s *SQLiteStore) LookupSession(ctx context.Context, token string) (*Session, error) {
	const q = `SELECT user_id, expires FROM sessions WHERE session_token = ?`

	var userID string
	var expires int64
	err := s.db.QueryRowContext(ctx, q, token).Scan(&userID, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	return &Session{
		UserID:  userID,
		Expires: time.Unix(expires, 0),
	}, nil
}

func (s *SQLiteStore) LookupUser(ctx context.Context, userID string) (*User, error) {
	const q = `SELECT id, COALESCE(name, ''), role, COALESCE(neighborhood_id, '') FROM users WHERE id = ?`

	var u User
	err := s.db.QueryRowContext(ctx, q, userID).Scan(&u.ID, &u.Name, &u.Role, &u.NeighborhoodID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	return &u, nil
}

// Ping verifies the database is reachable. Called once at startup.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
