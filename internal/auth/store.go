package auth

import (
	"context"
	"time"
)

// UserStore is the record-store seam for principal records.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	// FindByLogin resolves a principal by email or username.
	FindByLogin(ctx context.Context, login string) (*User, error)
	List(ctx context.Context, limit, offset int) ([]*User, error)
	// Update persists mutable fields: names, role, permissions, confirmation
	// and reset codes, email-confirmed flag.
	Update(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	Delete(ctx context.Context, id string) error
}

// RefreshTokenStore is the record-store seam for refresh token records.
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	// Find looks a record up by its opaque token value.
	Find(ctx context.Context, token string) (*RefreshToken, error)
	// Rotate atomically revokes the old record and inserts its replacement.
	// It must fail with ErrRefreshTokenInactive when the old record has
	// already been revoked, so that of two concurrent rotations of the same
	// token at most one succeeds.
	Rotate(ctx context.Context, oldToken string, revokedAt time.Time, revokedByIP string, replacement *RefreshToken) error
	// RevokeAllForUser marks every active record of the user revoked.
	RevokeAllForUser(ctx context.Context, userID string, revokedAt time.Time, revokedByIP string) error
	ListByUser(ctx context.Context, userID string) ([]*RefreshToken, error)
}
