package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/supahealth/supahealth/internal/model"
	"github.com/supahealth/supahealth/internal/store"
)

// TokenIssuer mints and verifies the HS256 bearer tokens the API hands
// out. The subject claim carries the user identifier.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	users  store.Users

	// now is swappable in tests.
	now func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration, users store.Users) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		users:  users,
		now:    time.Now,
	}
}

// Issue returns a signed token for the user, expiring after the
// configured lifetime.
func (ti *TokenIssuer) Issue(user *model.User) (string, time.Time, error) {
	now := ti.now()
	expiresAt := now.Add(ti.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign token")
	}
	return signed, expiresAt, nil
}

// Verify validates the token signature and expiry and resolves the
// subject to an active user. Any failure, from a garbled token to a
// deactivated account, comes back as model.ErrNotFound so callers
// answer with a single uniform 401.
func (ti *TokenIssuer) Verify(ctx context.Context, token string) (*model.User, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return ti.secret, nil
	}, jwt.WithTimeFunc(ti.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, model.ErrNotFound
	}
	user, err := ti.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, model.ErrNotFound
	}
	if !user.IsActive {
		return nil, model.ErrNotFound
	}
	return user, nil
}

// Refresh verifies the presented token and, if it still resolves to an
// active user, issues a fresh one. The old token stays valid until it
// expires; there is no revocation list.
func (ti *TokenIssuer) Refresh(ctx context.Context, token string) (string, time.Time, *model.User, error) {
	user, err := ti.Verify(ctx, token)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	fresh, expiresAt, err := ti.Issue(user)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return fresh, expiresAt, user, nil
}
