package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"taskhive/internal/notify"
)

// memUserStore is an in-memory UserStore for service tests.
type memUserStore struct {
	mu    sync.Mutex
	users map[string]*User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]*User)}
}

func copyUser(u *User) *User {
	cp := *u
	if u.Permissions != nil {
		cp.Permissions = u.Permissions.Clone()
	}
	if u.ResetCodeExpires != nil {
		exp := *u.ResetCodeExpires
		cp.ResetCodeExpires = &exp
	}
	return &cp
}

func (s *memUserStore) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) || strings.EqualFold(existing.UserName, u.UserName) {
			return ErrAlreadyExists
		}
	}
	s.users[u.ID] = copyUser(u)
	return nil
}

func (s *memUserStore) Find(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (s *memUserStore) FindByLogin(_ context.Context, login string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, login) || strings.EqualFold(u.UserName, login) {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *memUserStore) List(_ context.Context, limit, offset int) ([]*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*User
	for _, u := range s.users {
		out = append(out, copyUser(u))
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *memUserStore) Update(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return ErrNotFound
	}
	s.users[u.ID] = copyUser(u)
	return nil
}

func (s *memUserStore) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (s *memUserStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

// memTokenStore is an in-memory append-only RefreshTokenStore.
type memTokenStore struct {
	mu      sync.Mutex
	records []*RefreshToken
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{}
}

func copyToken(t *RefreshToken) *RefreshToken {
	cp := *t
	if t.RevokedAt != nil {
		at := *t.RevokedAt
		cp.RevokedAt = &at
	}
	return &cp
}

func (s *memTokenStore) Create(_ context.Context, tok *RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, copyToken(tok))
	return nil
}

func (s *memTokenStore) Find(_ context.Context, token string) (*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.Token == token {
			return copyToken(rec), nil
		}
	}
	return nil, ErrNotFound
}

func (s *memTokenStore) Rotate(_ context.Context, oldToken string, revokedAt time.Time, revokedByIP string, replacement *RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.Token != oldToken {
			continue
		}
		if rec.RevokedAt != nil {
			return ErrRefreshTokenInactive
		}
		rec.RevokedAt = &revokedAt
		rec.RevokedByIP = revokedByIP
		rec.ReplacedByToken = replacement.Token
		s.records = append(s.records, copyToken(replacement))
		return nil
	}
	return ErrRefreshTokenInactive
}

func (s *memTokenStore) RevokeAllForUser(_ context.Context, userID string, revokedAt time.Time, revokedByIP string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.UserID == userID && rec.RevokedAt == nil {
			at := revokedAt
			rec.RevokedAt = &at
			rec.RevokedByIP = revokedByIP
		}
	}
	return nil
}

func (s *memTokenStore) ListByUser(_ context.Context, userID string) ([]*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*RefreshToken
	for _, rec := range s.records {
		if rec.UserID == userID {
			out = append(out, copyToken(rec))
		}
	}
	return out, nil
}

func (s *memTokenStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// captureNotifier records outgoing messages for assertions.
type captureNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (n *captureNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

func (n *captureNotifier) last() (notify.Message, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.messages) == 0 {
		return notify.Message{}, false
	}
	return n.messages[len(n.messages)-1], true
}
