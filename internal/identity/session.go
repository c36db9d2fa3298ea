package identity

import (
	"context"
	"log/slog"
	"time"
)

// SessionValidator resolves an opaque session token the client quotes.
type SessionValidator struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

var _ Validator = (*SessionValidator)(nil)

func NewSessionValidator(store Store, logger *slog.Logger) *SessionValidator {
	return &SessionValidator{
		store:  store,
		now:    time.Now,
		logger: logger.With(slog.String("component", "session_validator")),
	}
}

func (v *SessionValidator) Validate(ctx context.Context, credential string) (*Identity, error) {
	if credential == "" {
		return nil, ErrInvalidCredential
	}

	session, err := v.store.LookupSession(ctx, credential)
	if err != nil {
		v.logger.Warn("session lookup failed", slog.Any("error", err))
		return nil, ErrInvalidCredential
	}
	if !session.Expires.After(v.now()) {
		v.logger.Debug("session expired", slog.String("userID", session.UserID))
		return nil, ErrInvalidCredential
	}

	user, err := v.store.LookupUser(ctx, session.UserID)
	if err != nil {
		v.logger.Warn("user lookup failed", slog.String("userID", session.UserID), slog.Any("error", err))
		return nil, ErrInvalidCredential
	}
	return identityFromUser(user), nil
}
