package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"taskhive/internal/auth"
)

var _ auth.RefreshTokenStore = (*RefreshTokenStore)(nil)

// RefreshTokenStore persists the append-only refresh token history. Records
// are never deleted; revocation only sets the revocation fields.
type RefreshTokenStore struct {
	db *sql.DB
}

const tokenColumns = `id, user_id, token, expires_at, created_at, created_by_ip,
	revoked_at, revoked_by_ip, replaced_by_token`

func (s *RefreshTokenStore) Create(ctx context.Context, tok *auth.RefreshToken) error {
	const op = "pg.RefreshTokenStore.Create"

	_, err := s.db.ExecContext(ctx,
		`insert into refresh_tokens (`+tokenColumns+`)
		 values ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		tok.ID, tok.UserID, tok.Token, tok.ExpiresAt, tok.CreatedAt, tok.CreatedByIP,
		tok.RevokedAt, tok.RevokedByIP, tok.ReplacedByToken,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *RefreshTokenStore) Find(ctx context.Context, token string) (*auth.RefreshToken, error) {
	const op = "pg.RefreshTokenStore.Find"

	row := s.db.QueryRowContext(ctx,
		`select `+tokenColumns+` from refresh_tokens where token = $1`, token)
	tok, err := scanRefreshToken(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, auth.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return tok, nil
}

// Rotate revokes the old record and inserts its replacement in one
// transaction. The conditional update is the concurrency guard: of two
// racing rotations only the one that flips revoked_at from null wins,
// the other observes zero affected rows and fails.
func (s *RefreshTokenStore) Rotate(ctx context.Context, oldToken string, revokedAt time.Time, revokedByIP string, replacement *auth.RefreshToken) error {
	const op = "pg.RefreshTokenStore.Rotate"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`update refresh_tokens
		 set revoked_at = $2, revoked_by_ip = $3, replaced_by_token = $4
		 where token = $1 and revoked_at is null`,
		oldToken, revokedAt, revokedByIP, replacement.Token,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, auth.ErrRefreshTokenInactive)
	}

	_, err = tx.ExecContext(ctx,
		`insert into refresh_tokens (`+tokenColumns+`)
		 values ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		replacement.ID, replacement.UserID, replacement.Token, replacement.ExpiresAt,
		replacement.CreatedAt, replacement.CreatedByIP,
		replacement.RevokedAt, replacement.RevokedByIP, replacement.ReplacedByToken,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *RefreshTokenStore) RevokeAllForUser(ctx context.Context, userID string, revokedAt time.Time, revokedByIP string) error {
	const op = "pg.RefreshTokenStore.RevokeAllForUser"

	_, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked_at = $2, revoked_by_ip = $3
		 where user_id = $1 and revoked_at is null`,
		userID, revokedAt, revokedByIP,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *RefreshTokenStore) ListByUser(ctx context.Context, userID string) ([]*auth.RefreshToken, error) {
	const op = "pg.RefreshTokenStore.ListByUser"

	rows, err := s.db.QueryContext(ctx,
		`select `+tokenColumns+` from refresh_tokens where user_id = $1 order by created_at asc`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var tokens []*auth.RefreshToken
	for rows.Next() {
		tok, err := scanRefreshToken(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		tokens = append(tokens, tok)
	}
	return tokens, rows.Err()
}

func scanRefreshToken(row rowScanner) (*auth.RefreshToken, error) {
	var (
		tok        auth.RefreshToken
		revokedIP  sql.NullString
		replacedBy sql.NullString
	)
	err := row.Scan(
		&tok.ID, &tok.UserID, &tok.Token, &tok.ExpiresAt, &tok.CreatedAt, &tok.CreatedByIP,
		&tok.RevokedAt, &revokedIP, &replacedBy,
	)
	if err != nil {
		return nil, err
	}
	tok.RevokedByIP = revokedIP.String
	tok.ReplacedByToken = replacedBy.String
	return &tok, nil
}
