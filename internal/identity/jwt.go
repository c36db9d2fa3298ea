package identity

import (
	"context"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the claim set the auth endpoints sign into session
// JWTs. The user id lives in "userId"; older tokens carry it in "sub".
type TokenClaims struct {
	UserID string `json:"userId,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (c *TokenClaims) userID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// JWTValidator verifies an HMAC-signed token and then resolves the
// user's current profile from the store, so role and neighborhood
// reflect the row, not the token.
type JWTValidator struct {
	secret []byte
	store  Store
	logger *slog.Logger
}

var _ Validator = (*JWTValidator)(nil)

func NewJWTValidator(secret string, store Store, logger *slog.Logger) *JWTValidator {
	return &JWTValidator{
		secret: []byte(secret),
		store:  store,
		logger: logger.With(slog.String("component", "jwt_validator")),
	}
}

func (v *JWTValidator) Validate(ctx context.Context, credential string) (*Identity, error) {
	if credential == "" {
		return nil, ErrInvalidCredential
	}

	token, err := jwt.ParseWithClaims(credential, &TokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		v.logger.Warn("token verification failed", slog.Any("error", err))
		return nil, ErrInvalidCredential
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || claims.userID() == "" {
		v.logger.Warn("valid token with no user id claim")
		return nil, ErrInvalidCredential
	}

	user, err := v.store.LookupUser(ctx, claims.userID())
	if err != nil {
		v.logger.Warn("user lookup failed", slog.String("userID", claims.userID()), slog.Any("error", err))
		return nil, ErrInvalidCredential
	}
	return identityFromUser(user), nil
}
