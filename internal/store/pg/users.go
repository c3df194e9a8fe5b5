package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"taskhive/internal/auth"
)

const uniqueViolation = "23505"

var _ auth.UserStore = (*UserStore)(nil)

// UserStore persists principal records. Permissions live in a join table as
// structured (resource, action) rows, parsed into the domain type exactly
// once on the way out.
type UserStore struct {
	db *sql.DB
}

const userColumns = `id, first_name, last_name, user_name, email, password_hash,
	email_confirmed, role, confirm_code, reset_code, reset_code_expires, created_at, updated_at`

func (s *UserStore) Create(ctx context.Context, u *auth.User) error {
	const op = "pg.UserStore.Create"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`insert into users (`+userColumns+`)
		 values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		u.ID, u.FirstName, u.LastName, u.UserName, u.Email, u.PasswordHash,
		u.EmailConfirmed, int(u.Role), u.ConfirmCode, u.ResetCode, u.ResetCodeExpires,
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%s: %w", op, auth.ErrAlreadyExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := insertPermissions(ctx, tx, u.ID, u.Permissions); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *UserStore) Find(ctx context.Context, id string) (*auth.User, error) {
	const op = "pg.UserStore.Find"
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id = $1`, id)
	return s.scanWithPermissions(ctx, op, row)
}

func (s *UserStore) FindByLogin(ctx context.Context, login string) (*auth.User, error) {
	const op = "pg.UserStore.FindByLogin"
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where lower(email) = lower($1) or lower(user_name) = lower($1)`,
		login)
	return s.scanWithPermissions(ctx, op, row)
}

func (s *UserStore) List(ctx context.Context, limit, offset int) ([]*auth.User, error) {
	const op = "pg.UserStore.List"

	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users order by created_at asc limit $1 offset $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var users []*auth.User
	var userIDs []string
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		users = append(users, u)
		userIDs = append(userIDs, u.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(users) == 0 {
		return users, nil
	}

	permRows, err := s.db.QueryContext(ctx,
		`select user_id, resource, action from user_permissions where user_id = any($1)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer permRows.Close()

	byID := make(map[string]*auth.User, len(users))
	for _, u := range users {
		u.Permissions = auth.NewPermissionSet()
		byID[u.ID] = u
	}
	for permRows.Next() {
		var userID, resource, action string
		if err := permRows.Scan(&userID, &resource, &action); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if u, ok := byID[userID]; ok {
			u.Permissions.Add(auth.Permission{Resource: auth.Resource(resource), Action: auth.Action(action)})
		}
	}
	if err := permRows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

func (s *UserStore) Update(ctx context.Context, u *auth.User) error {
	const op = "pg.UserStore.Update"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`update users set first_name = $2, last_name = $3, email_confirmed = $4, role = $5,
			confirm_code = $6, reset_code = $7, reset_code_expires = $8, updated_at = $9
		 where id = $1`,
		u.ID, u.FirstName, u.LastName, u.EmailConfirmed, int(u.Role),
		u.ConfirmCode, u.ResetCode, u.ResetCodeExpires, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, auth.ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `delete from user_permissions where user_id = $1`, u.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := insertPermissions(ctx, tx, u.ID, u.Permissions); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *UserStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	const op = "pg.UserStore.UpdatePassword"

	res, err := s.db.ExecContext(ctx,
		`update users set password_hash = $2, updated_at = now() where id = $1`,
		userID, passwordHash)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, auth.ErrNotFound)
	}
	return nil
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	const op = "pg.UserStore.Delete"

	res, err := s.db.ExecContext(ctx, `delete from users where id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, auth.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*auth.User, error) {
	var (
		u    auth.User
		role int
	)
	err := row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.UserName, &u.Email, &u.PasswordHash,
		&u.EmailConfirmed, &role, &u.ConfirmCode, &u.ResetCode, &u.ResetCodeExpires,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = auth.Role(role)
	return &u, nil
}

func (s *UserStore) scanWithPermissions(ctx context.Context, op string, row *sql.Row) (*auth.User, error) {
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, auth.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	perms, err := s.loadPermissions(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u.Permissions = perms
	return u, nil
}

func (s *UserStore) loadPermissions(ctx context.Context, userID string) (auth.PermissionSet, error) {
	rows, err := s.db.QueryContext(ctx,
		`select resource, action from user_permissions where user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := auth.NewPermissionSet()
	for rows.Next() {
		var resource, action string
		if err := rows.Scan(&resource, &action); err != nil {
			return nil, err
		}
		set.Add(auth.Permission{Resource: auth.Resource(resource), Action: auth.Action(action)})
	}
	return set, rows.Err()
}

func insertPermissions(ctx context.Context, tx *sql.Tx, userID string, perms auth.PermissionSet) error {
	for _, raw := range perms.Strings() {
		p, err := auth.ParsePermission(raw)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`insert into user_permissions (user_id, resource, action) values ($1, $2, $3)
			 on conflict do nothing`,
			userID, string(p.Resource), string(p.Action))
		if err != nil {
			return err
		}
	}
	return nil
}
