package pg

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store bundles the PostgreSQL-backed record stores over a shared pool.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL through the pgx stdlib driver and verifies the
// connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing pool. Used by tests with sqlmock.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying pool for readiness probes.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// Users returns the principal record store.
func (s *Store) Users() *UserStore { return &UserStore{db: s.db} }

// RefreshTokens returns the refresh token record store.
func (s *Store) RefreshTokens() *RefreshTokenStore { return &RefreshTokenStore{db: s.db} }

// Todos returns the task store.
func (s *Store) Todos() *TodoStore { return &TodoStore{db: s.db} }
