package auth

import "time"

// User is the persisted principal record.
type User struct {
	ID             string
	FirstName      string
	LastName       string
	UserName       string
	Email          string
	PasswordHash   string
	EmailConfirmed bool
	Role           Role
	// Permissions is seeded from the role at creation time but may diverge
	// through explicit grants and revocations afterwards.
	Permissions PermissionSet

	// ConfirmCode is the pending email confirmation code, empty once used.
	ConfirmCode string
	// ResetCode and ResetCodeExpires drive the password reset flow.
	ResetCode        string
	ResetCodeExpires *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RefreshToken is a persisted refresh token record. Records are append-only:
// rotation revokes the old record and links a replacement, nothing is ever
// deleted.
type RefreshToken struct {
	ID              string
	UserID          string
	Token           string
	ExpiresAt       time.Time
	CreatedAt       time.Time
	CreatedByIP     string
	RevokedAt       *time.Time
	RevokedByIP     string
	ReplacedByToken string
}

// Expired reports whether the record's lifetime has passed at the given time.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Active reports whether the record can still be rotated.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && !t.Expired(now)
}

// Principal is the authenticated caller as seen by protected operations.
// Its permission set is the snapshot embedded in the access token at
// issuance, not live store state.
type Principal struct {
	UserID      string
	UserName    string
	Email       string
	Role        Role
	Permissions PermissionSet
}

// HasPermission reports whether the principal's snapshot grants p.
func (p Principal) HasPermission(perm Permission) bool {
	return p.Permissions.Has(perm)
}
