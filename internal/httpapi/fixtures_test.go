package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"taskhive/internal/auth"
	"taskhive/internal/ids"
	"taskhive/internal/todo"
)

// memUserStore is a minimal in-memory auth.UserStore for handler tests.
type memUserStore struct {
	mu    sync.Mutex
	users map[string]*auth.User
}

func (s *memUserStore) Create(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) || strings.EqualFold(existing.UserName, u.UserName) {
			return auth.ErrAlreadyExists
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memUserStore) Find(_ context.Context, id string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUserStore) FindByLogin(_ context.Context, login string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, login) || strings.EqualFold(u.UserName, login) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *memUserStore) List(_ context.Context, limit, offset int) ([]*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*auth.User
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
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

func (s *memUserStore) Update(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return auth.ErrNotFound
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memUserStore) UpdatePassword(_ context.Context, userID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (s *memUserStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

// memTokenStore is a minimal in-memory auth.RefreshTokenStore.
type memTokenStore struct {
	mu      sync.Mutex
	records []*auth.RefreshToken
}

func (s *memTokenStore) Create(_ context.Context, tok *auth.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tok
	s.records = append(s.records, &cp)
	return nil
}

func (s *memTokenStore) Find(_ context.Context, token string) (*auth.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.Token == token {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *memTokenStore) Rotate(_ context.Context, oldToken string, revokedAt time.Time, revokedByIP string, replacement *auth.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.Token != oldToken {
			continue
		}
		if rec.RevokedAt != nil {
			return auth.ErrRefreshTokenInactive
		}
		at := revokedAt
		rec.RevokedAt = &at
		rec.RevokedByIP = revokedByIP
		rec.ReplacedByToken = replacement.Token
		cp := *replacement
		s.records = append(s.records, &cp)
		return nil
	}
	return auth.ErrRefreshTokenInactive
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

func (s *memTokenStore) ListByUser(_ context.Context, userID string) ([]*auth.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*auth.RefreshToken
	for _, rec := range s.records {
		if rec.UserID == userID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

// memTodoStore is a minimal in-memory todo.Store.
type memTodoStore struct {
	mu    sync.Mutex
	tasks map[string]*todo.Task
	order []string
}

func (s *memTodoStore) Create(_ context.Context, t *todo.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tasks[t.ID] = &cp
	s.order = append(s.order, t.ID)
	return nil
}

func (s *memTodoStore) Find(_ context.Context, id string) (*todo.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, todo.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memTodoStore) List(_ context.Context, limit, offset int) ([]*todo.Task, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := len(s.order)
	var out []*todo.Task
	for i := len(s.order) - 1; i >= 0; i-- {
		if t, ok := s.tasks[s.order[i]]; ok {
			cp := *t
			out = append(out, &cp)
		}
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (s *memTodoStore) Update(_ context.Context, t *todo.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return todo.ErrNotFound
	}
	cp := *t
	s.tasks[t.ID] = &cp
	return nil
}

func (s *memTodoStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return todo.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T

	users  *memUserStore
	tokens *memTokenStore
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	users := &memUserStore{users: make(map[string]*auth.User)}
	tokens := &memTokenStore{}

	authSvc, err := auth.NewService(users, tokens,
		auth.WithSigningKey([]byte("test-secret"), "taskhive", "taskhive-api"),
	)
	if err != nil {
		t.Fatalf("auth.NewService: %v", err)
	}
	todoSvc, err := todo.NewService(nil, &memTodoStore{tasks: make(map[string]*todo.Task)})
	if err != nil {
		t.Fatalf("todo.NewService: %v", err)
	}

	api := New(discardLogger(), authSvc, todoSvc, ReadyProbe{}, Options{
		Version:    "test",
		RateBurst:  1000,
		RatePerSec: 1000,
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
		users:   users,
		tokens:  tokens,
	}
}

func (c *apiClient) seedUser(role auth.Role, userName, email, password string) *auth.User {
	c.t.Helper()

	hash, err := auth.HashPassword(password)
	if err != nil {
		c.t.Fatalf("hash password: %v", err)
	}
	now := time.Now().UTC()
	user := &auth.User{
		ID:             ids.New(),
		UserName:       userName,
		Email:          email,
		PasswordHash:   hash,
		EmailConfirmed: true,
		Role:           role,
		Permissions:    auth.NewPermissionSet(auth.PermissionsForRole(role)...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := c.users.Create(context.Background(), user); err != nil {
		c.t.Fatalf("seed user: %v", err)
	}
	return user
}

func (c *apiClient) do(method, path string, body any, bearer string) *http.Response {
	c.t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (c *apiClient) decode(resp *http.Response) Response {
	c.t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("read body: %v", err)
	}
	var envelope Response
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.t.Fatalf("unmarshal %q: %v", raw, err)
	}
	return envelope
}

// login authenticates and returns access and refresh tokens.
func (c *apiClient) login(login, password string) (string, string) {
	c.t.Helper()

	resp := c.do(http.MethodPost, "/v1/account/authenticate",
		map[string]string{"login": login, "password": password}, "")
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("authenticate: status %d", resp.StatusCode)
	}
	envelope := c.decode(resp)
	data := envelope.Data.(map[string]any)
	return data["access_token"].(string), data["refresh_token"].(string)
}
