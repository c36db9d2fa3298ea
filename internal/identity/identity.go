// Package identity resolves opaque client credentials into the identity
// they represent, using the same lookup semantics as the HTTP auth
// endpoints. The realtime core only validates credentials; issuing them
// (OTP flow, JWT signing) belongs to the web layer.
package identity

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidCredential is the only failure a validator reports. Store
// outages, malformed tokens, bad signatures, missing users and expired
// sessions all collapse into it: either a connection is authenticated
// or it is not, and infrastructure detail never leaks to the client.
var ErrInvalidCredential = errors.New("invalid credential")

// ErrNotFound is returned by stores when a session or user row does
// not exist.
var ErrNotFound = errors.New("not found")

// Identity is resolved once per connection and never mutated. If the
// underlying profile changes (e.g. neighborhood reassignment) the
// cached identity is stale until the client reconnects.
type Identity struct {
	UserID         string
	Role           string
	Name           string
	NeighborhoodID string
}

// DisplayName substitutes "Anonymous" when the profile has no name.
func (id *Identity) DisplayName() string {
	if id.Name == "" {
		return "Anonymous"
	}
	return id.Name
}

// Validator resolves a credential into an Identity or fails with
// ErrInvalidCredential. Read-only against the identity store.
type Validator interface {
	Validate(ctx context.Context, credential string) (*Identity, error)
}

// Session is a session-token row as stored by the auth endpoints.
type Session struct {
	UserID  string
	Expires time.Time
}

// User is the subset of the user row the realtime core needs.
type User struct {
	ID             string
	Name           string
	Role           string
	NeighborhoodID string
}

// Store is the boundary to the identity/session persistence service.
type Store interface {
	LookupSession(ctx context.Context, token string) (*Session, error)
	LookupUser(ctx context.Context, userID string) (*User, error)
}

func identityFromUser(u *User) *Identity {
	return &Identity{
		UserID:         u.ID,
		Role:           u.Role,
		Name:           u.Name,
		NeighborhoodID: u.NeighborhoodID,
	}
}
