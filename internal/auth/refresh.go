package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"taskhive/internal/ids"
)

// RefreshManager owns the refresh token lifecycle: issue on login, rotate on
// refresh, revoke on logout. Tokens are opaque random strings; the store
// keeps the full append-only history.
type RefreshManager struct {
	store RefreshTokenStore
	ttl   time.Duration
	now   func() time.Time
}

func NewRefreshManager(store RefreshTokenStore, ttl time.Duration, now func() time.Time) (*RefreshManager, error) {
	if store == nil {
		return nil, errors.New("refresh token store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("refresh token ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &RefreshManager{store: store, ttl: ttl, now: now}, nil
}

// Issue creates a new active record for the user and returns the raw token.
func (m *RefreshManager) Issue(ctx context.Context, userID, sourceIP string) (*RefreshToken, error) {
	const op = "auth.RefreshManager.Issue"

	token, err := generateOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	now := m.now().UTC()
	rec := &RefreshToken{
		ID:          ids.New(),
		UserID:      userID,
		Token:       token,
		ExpiresAt:   now.Add(m.ttl),
		CreatedAt:   now,
		CreatedByIP: sourceIP,
	}
	if err := m.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

// Rotate exchanges an active token for a fresh one. The old record is
// revoked and linked to the replacement. The store performs the
// revoke-and-replace as one conditional update, so concurrent rotations of
// the same token cannot both succeed.
func (m *RefreshManager) Rotate(ctx context.Context, oldToken, sourceIP string) (*RefreshToken, error) {
	const op = "auth.RefreshManager.Rotate"

	rec, err := m.store.Find(ctx, oldToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrRefreshTokenInactive)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	now := m.now().UTC()
	if !rec.Active(now) {
		return nil, fmt.Errorf("%s: %w", op, ErrRefreshTokenInactive)
	}

	token, err := generateOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	replacement := &RefreshToken{
		ID:          ids.New(),
		UserID:      rec.UserID,
		Token:       token,
		ExpiresAt:   now.Add(m.ttl),
		CreatedAt:   now,
		CreatedByIP: sourceIP,
	}
	if err := m.store.Rotate(ctx, rec.Token, now, sourceIP, replacement); err != nil {
		if errors.Is(err, ErrRefreshTokenInactive) {
			// Lost the race: another request consumed the token first.
			return nil, fmt.Errorf("%s: %w", op, ErrRefreshTokenInactive)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return replacement, nil
}

// RevokeAll revokes every active record owned by the user. Used on logout;
// no replacements are created.
func (m *RefreshManager) RevokeAll(ctx context.Context, userID, sourceIP string) error {
	const op = "auth.RefreshManager.RevokeAll"

	if err := m.store.RevokeAllForUser(ctx, userID, m.now().UTC(), sourceIP); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// IsActive reports whether the token exists, belongs to the user and can
// still be rotated.
func (m *RefreshManager) IsActive(ctx context.Context, userID, token string) (bool, error) {
	const op = "auth.RefreshManager.IsActive"

	rec, err := m.store.Find(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if rec.UserID != userID {
		return false, nil
	}
	return rec.Active(m.now().UTC()), nil
}

// generateOpaqueToken returns 32 bytes of cryptographically random data,
// base64url-encoded.
func generateOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
