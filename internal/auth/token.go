package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the access token claim set. The permission list is a snapshot
// taken at issuance; changing a user's permissions does not touch tokens
// already in flight.
type Claims struct {
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	IP          string   `json:"ip,omitempty"`
	jwt.RegisteredClaims
}

// Principal converts validated claims back into a Principal.
func (c *Claims) Principal() (Principal, error) {
	role, err := ParseRole(c.Role)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	perms, err := ParsePermissionSet(c.Permissions)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return Principal{
		UserID:      c.Subject,
		UserName:    c.Name,
		Email:       c.Email,
		Role:        role,
		Permissions: perms,
	}, nil
}

// TokenIssuer mints and validates HS256 access tokens. It is stateless:
// issuance is a pure function of the user, the signing key and the clock,
// validation never touches the store.
type TokenIssuer struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewTokenIssuer(key []byte, issuer, audience string, ttl time.Duration, now func() time.Time) (*TokenIssuer, error) {
	if len(key) == 0 {
		return nil, errors.New("signing key is required")
	}
	if ttl <= 0 {
		return nil, errors.New("access token ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{
		key:      key,
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      now,
	}, nil
}

// Issue signs an access token for the user. sourceIP is carried as an extra
// claim when known.
func (ti *TokenIssuer) Issue(user *User, sourceIP string) (string, time.Time, error) {
	now := ti.now().UTC()
	exp := now.Add(ti.ttl)
	claims := Claims{
		Name:        user.UserName,
		Email:       user.Email,
		Role:        user.Role.String(),
		Permissions: user.Permissions.Strings(),
		IP:          sourceIP,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.issuer,
			Audience:  jwt.ClaimStrings{ti.audience},
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Validate verifies signature, algorithm, issuer, audience and expiry.
// There is no clock skew tolerance: a token one second past exp is expired.
func (ti *TokenIssuer) Validate(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ti.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ti.issuer),
		jwt.WithAudience(ti.audience),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(0),
		jwt.WithTimeFunc(func() time.Time { return ti.now().UTC() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
