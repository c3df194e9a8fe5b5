package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskhive/internal/ids"
	"taskhive/internal/notify"
	"taskhive/internal/obs"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	resetCodeTTL      = 24 * time.Hour
)

// Service is the identity and access-control facade: credential
// verification, token issuance, refresh rotation and permission checks.
type Service struct {
	logger   *slog.Logger
	users    UserStore
	tokens   *TokenIssuer
	refresh  *RefreshManager
	notifier notify.Notifier
	now      func() time.Time

	signingKey []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// ServiceOption configures Service construction.
type ServiceOption func(*Service)

// WithSigningKey sets the HS256 key plus issuer and audience claims.
func WithSigningKey(key []byte, issuer, audience string) ServiceOption {
	return func(s *Service) {
		s.signingKey = key
		s.issuer = issuer
		s.audience = audience
	}
}

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithNotifier sets the fire-and-forget mail collaborator.
func WithNotifier(n notify.Notifier) ServiceOption {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService wires the identity core together.
func NewService(users UserStore, refreshTokens RefreshTokenStore, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, errors.New("user store is required")
	}
	if refreshTokens == nil {
		return nil, errors.New("refresh token store is required")
	}
	svc := &Service{
		logger:     slog.Default(),
		users:      users,
		notifier:   notify.Discard{},
		now:        time.Now,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	issuer, err := NewTokenIssuer(svc.signingKey, svc.issuer, svc.audience, svc.accessTTL, svc.now)
	if err != nil {
		return nil, err
	}
	svc.tokens = issuer
	manager, err := NewRefreshManager(refreshTokens, svc.refreshTTL, svc.now)
	if err != nil {
		return nil, err
	}
	svc.refresh = manager
	return svc, nil
}

// Session is the result of a successful authentication or refresh.
type Session struct {
	User             *User
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Authenticate verifies credentials and, for a confirmed account, issues an
// access token plus a fresh refresh token.
func (s *Service) Authenticate(ctx context.Context, login, password, sourceIP string) (*Session, error) {
	const op = "auth.Service.Authenticate"
	log := s.logger.With(slog.String("op", op))

	login = strings.TrimSpace(strings.ToLower(login))
	if login == "" || password == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.users.FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("unknown login", slog.String("login", login))
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		log.Error("failed to load user", obs.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		log.Warn("password mismatch", slog.String("userID", user.ID))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if !user.EmailConfirmed {
		return nil, fmt.Errorf("%s: %w", op, ErrAccountNotConfirmed)
	}

	session, err := s.startSession(ctx, user, sourceIP)
	if err != nil {
		log.Error("failed to start session", obs.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("user authenticated", slog.String("userID", user.ID), slog.String("role", user.Role.String()))
	return session, nil
}

// Refresh rotates the refresh token and mints a new access token. Any
// problem with the presented token surfaces as ErrRefreshTokenInactive; the
// caller must re-authenticate.
func (s *Service) Refresh(ctx context.Context, refreshToken, sourceIP string) (*Session, error) {
	const op = "auth.Service.Refresh"
	log := s.logger.With(slog.String("op", op))

	replacement, err := s.refresh.Rotate(ctx, refreshToken, sourceIP)
	if err != nil {
		if errors.Is(err, ErrRefreshTokenInactive) {
			log.Warn("refresh token rejected")
			return nil, fmt.Errorf("%s: %w", op, ErrRefreshTokenInactive)
		}
		log.Error("rotation failed", obs.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.users.Find(ctx, replacement.UserID)
	if err != nil {
		log.Error("failed to load user", obs.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	access, accessExp, err := s.tokens.Issue(user, sourceIP)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("tokens refreshed", slog.String("userID", user.ID))
	return &Session{
		User:             user,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     replacement.Token,
		RefreshExpiresAt: replacement.ExpiresAt,
	}, nil
}

// Logout revokes every active refresh token the user owns.
func (s *Service) Logout(ctx context.Context, userID, sourceIP string) error {
	const op = "auth.Service.Logout"

	if err := s.refresh.RevokeAll(ctx, userID, sourceIP); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Info("user logged out", slog.String("op", op), slog.String("userID", userID))
	return nil
}

// ValidateAccessToken verifies the token and reconstructs the principal from
// its claims. Purely stateless.
func (s *Service) ValidateAccessToken(token string) (Principal, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return Principal{}, err
	}
	return claims.Principal()
}

// Authorize validates the access token and checks the required permission
// against the claim snapshot. It never consults the store: a permission
// change takes effect at the next token refresh.
func (s *Service) Authorize(ctx context.Context, accessToken string, required Permission) (Principal, error) {
	const op = "auth.Service.Authorize"

	principal, err := s.ValidateAccessToken(accessToken)
	if err != nil {
		return Principal{}, fmt.Errorf("%s: %w", op, err)
	}
	if !principal.HasPermission(required) {
		s.logger.Warn("permission denied",
			slog.String("op", op),
			slog.String("userID", principal.UserID),
			slog.String("permission", required.String()),
		)
		return Principal{}, fmt.Errorf("%s: %w", op, ErrPermissionDenied)
	}
	return principal, nil
}

// IsRefreshTokenActive reports whether the user still owns an active record
// for the given token.
func (s *Service) IsRefreshTokenActive(ctx context.Context, userID, token string) (bool, error) {
	return s.refresh.IsActive(ctx, userID, token)
}

// RegisterParams describes a self-service registration.
type RegisterParams struct {
	FirstName string
	LastName  string
	UserName  string
	Email     string
	Password  string
}

// Register creates a Basic principal with the role's default permission set
// and sends a confirmation code through the notifier. The account cannot
// authenticate until the email is confirmed.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*User, error) {
	const op = "auth.Service.Register"
	log := s.logger.With(slog.String("op", op))

	p.UserName = strings.TrimSpace(p.UserName)
	p.Email = strings.TrimSpace(strings.ToLower(p.Email))
	if p.UserName == "" || p.Email == "" || !strings.Contains(p.Email, "@") {
		return nil, fmt.Errorf("%s: %w: username and valid email are required", op, ErrInvalidInput)
	}
	if p.Password == "" {
		return nil, fmt.Errorf("%s: %w: password is required", op, ErrInvalidInput)
	}

	hash, err := HashPassword(p.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()
	user := &User{
		ID:           ids.New(),
		FirstName:    strings.TrimSpace(p.FirstName),
		LastName:     strings.TrimSpace(p.LastName),
		UserName:     p.UserName,
		Email:        p.Email,
		PasswordHash: hash,
		Role:         RoleBasic,
		Permissions:  NewPermissionSet(PermissionsForRole(RoleBasic)...),
		ConfirmCode:  uuid.NewString(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrAlreadyExists)
		}
		log.Error("failed to create user", obs.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.send(ctx, notify.Message{
		To:      user.Email,
		Subject: "Confirm Registration",
		Body:    fmt.Sprintf("Please confirm your account using code %s", user.ConfirmCode),
	})

	log.Info("user registered", slog.String("userID", user.ID))
	return user, nil
}

// ConfirmEmail completes registration with the emailed code.
func (s *Service) ConfirmEmail(ctx context.Context, userID, code string) error {
	const op = "auth.Service.ConfirmEmail"

	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if user.EmailConfirmed {
		return nil
	}
	if code == "" || user.ConfirmCode != code {
		return fmt.Errorf("%s: %w: confirmation code mismatch", op, ErrInvalidInput)
	}
	user.EmailConfirmed = true
	user.ConfirmCode = ""
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Info("email confirmed", slog.String("op", op), slog.String("userID", userID))
	return nil
}

// ForgotPassword issues a reset code. An unknown email is deliberately
// swallowed to prevent account enumeration.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	const op = "auth.Service.ForgotPassword"

	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.users.FindByLogin(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	expires := s.now().UTC().Add(resetCodeTTL)
	user.ResetCode = uuid.NewString()
	user.ResetCodeExpires = &expires
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.send(ctx, notify.Message{
		To:      user.Email,
		Subject: "Reset Password",
		Body:    fmt.Sprintf("Your reset code is %s", user.ResetCode),
	})
	return nil
}

// ResetPassword sets a new password given a valid reset code and revokes all
// refresh tokens so stolen sessions die with the old password.
func (s *Service) ResetPassword(ctx context.Context, email, code, password string) error {
	const op = "auth.Service.ResetPassword"

	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.users.FindByLogin(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrInvalidInput)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	now := s.now().UTC()
	if code == "" || user.ResetCode != code || user.ResetCodeExpires == nil || now.After(*user.ResetCodeExpires) {
		return fmt.Errorf("%s: %w: reset code invalid or expired", op, ErrInvalidInput)
	}
	if password == "" {
		return fmt.Errorf("%s: %w: password is required", op, ErrInvalidInput)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	user.PasswordHash = hash
	user.ResetCode = ""
	user.ResetCodeExpires = nil
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.refresh.RevokeAll(ctx, user.ID, ""); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Info("password reset", slog.String("op", op), slog.String("userID", user.ID))
	return nil
}

// CreateUserParams describes an administratively created principal.
type CreateUserParams struct {
	FirstName string
	LastName  string
	UserName  string
	Email     string
	Password  string
	Role      Role
}

// CreateUser creates a principal with an explicit role. The actor's role
// bounds which roles it may hand out: the role hierarchy rule applies.
// Admin-created accounts are confirmed immediately.
func (s *Service) CreateUser(ctx context.Context, actor Principal, p CreateUserParams) (*User, error) {
	const op = "auth.Service.CreateUser"

	if !p.Role.Valid() {
		return nil, fmt.Errorf("%s: %w: role is required", op, ErrInvalidInput)
	}
	if !actor.Role.CanActOn(p.Role) {
		return nil, fmt.Errorf("%s: %w", op, ErrPermissionDenied)
	}
	p.UserName = strings.TrimSpace(p.UserName)
	p.Email = strings.TrimSpace(strings.ToLower(p.Email))
	if p.UserName == "" || p.Email == "" || !strings.Contains(p.Email, "@") {
		return nil, fmt.Errorf("%s: %w: username and valid email are required", op, ErrInvalidInput)
	}
	if p.Password == "" {
		return nil, fmt.Errorf("%s: %w: password is required", op, ErrInvalidInput)
	}
	hash, err := HashPassword(p.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()
	user := &User{
		ID:             ids.New(),
		FirstName:      strings.TrimSpace(p.FirstName),
		LastName:       strings.TrimSpace(p.LastName),
		UserName:       p.UserName,
		Email:          p.Email,
		PasswordHash:   hash,
		EmailConfirmed: true,
		Role:           p.Role,
		Permissions:    NewPermissionSet(PermissionsForRole(p.Role)...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Info("user created",
		slog.String("op", op),
		slog.String("actorID", actor.UserID),
		slog.String("userID", user.ID),
		slog.String("role", user.Role.String()),
	)
	return user, nil
}

// UpdateUserInfo changes a principal's display names. The actor must outrank
// the target.
func (s *Service) UpdateUserInfo(ctx context.Context, actor Principal, userID, firstName, lastName string) (*User, error) {
	const op = "auth.Service.UpdateUserInfo"

	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !actor.Role.CanActOn(user.Role) {
		return nil, fmt.Errorf("%s: %w", op, ErrPermissionDenied)
	}
	user.FirstName = strings.TrimSpace(firstName)
	user.LastName = strings.TrimSpace(lastName)
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Info("user info updated",
		slog.String("op", op),
		slog.String("actorID", actor.UserID),
		slog.String("userID", userID),
	)
	return user, nil
}

// ChangeRole moves a principal to a new role and reseeds its permission set
// from the role table. The actor must outrank both the current and the new
// role.
func (s *Service) ChangeRole(ctx context.Context, actor Principal, userID string, role Role) (*User, error) {
	const op = "auth.Service.ChangeRole"

	if !role.Valid() {
		return nil, fmt.Errorf("%s: %w: role is required", op, ErrInvalidInput)
	}
	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !actor.Role.CanActOn(user.Role) || !actor.Role.CanActOn(role) {
		return nil, fmt.Errorf("%s: %w", op, ErrPermissionDenied)
	}
	user.Role = role
	user.Permissions = NewPermissionSet(PermissionsForRole(role)...)
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Info("role changed",
		slog.String("op", op),
		slog.String("actorID", actor.UserID),
		slog.String("userID", userID),
		slog.String("role", role.String()),
	)
	return user, nil
}

// GrantPermission adds a single explicit capability on top of the role
// defaults.
func (s *Service) GrantPermission(ctx context.Context, actor Principal, userID string, perm Permission) (*User, error) {
	const op = "auth.Service.GrantPermission"
	return s.mutatePermissions(ctx, actor, userID, op, func(set PermissionSet) { set.Add(perm) })
}

// RevokePermission removes a capability. Existing access tokens keep their
// snapshot until they expire.
func (s *Service) RevokePermission(ctx context.Context, actor Principal, userID string, perm Permission) (*User, error) {
	const op = "auth.Service.RevokePermission"
	return s.mutatePermissions(ctx, actor, userID, op, func(set PermissionSet) { set.Remove(perm) })
}

func (s *Service) mutatePermissions(ctx context.Context, actor Principal, userID, op string, mutate func(PermissionSet)) (*User, error) {
	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !actor.Role.CanActOn(user.Role) {
		return nil, fmt.Errorf("%s: %w", op, ErrPermissionDenied)
	}
	if user.Permissions == nil {
		user.Permissions = NewPermissionSet()
	}
	mutate(user.Permissions)
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// RoleOf returns the stored role of a principal.
func (s *Service) RoleOf(ctx context.Context, userID string) (Role, error) {
	const op = "auth.Service.RoleOf"
	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return user.Role, nil
}

// PermissionsOf returns the stored (live, not snapshot) permission set.
func (s *Service) PermissionsOf(ctx context.Context, userID string) ([]string, error) {
	const op = "auth.Service.PermissionsOf"
	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user.Permissions.Strings(), nil
}

// GetUser loads a single principal record.
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	const op = "auth.Service.GetUser"
	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// ListUsers pages through the user directory.
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, error) {
	const op = "auth.Service.ListUsers"
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// DeleteUser removes a principal. The actor must outrank the target.
func (s *Service) DeleteUser(ctx context.Context, actor Principal, userID string) error {
	const op = "auth.Service.DeleteUser"

	user, err := s.users.Find(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !actor.Role.CanActOn(user.Role) {
		return fmt.Errorf("%s: %w", op, ErrPermissionDenied)
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) startSession(ctx context.Context, user *User, sourceIP string) (*Session, error) {
	access, accessExp, err := s.tokens.Issue(user, sourceIP)
	if err != nil {
		return nil, err
	}
	rec, err := s.refresh.Issue(ctx, user.ID, sourceIP)
	if err != nil {
		return nil, err
	}
	return &Session{
		User:             user,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     rec.Token,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}

// send dispatches mail without letting delivery problems fail the calling
// operation.
func (s *Service) send(ctx context.Context, msg notify.Message) {
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("notification failed", slog.String("to", msg.To), obs.Err(err))
	}
}
