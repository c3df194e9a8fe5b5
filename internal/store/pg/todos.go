package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"taskhive/internal/todo"
)

var _ todo.Store = (*TodoStore)(nil)

// TodoStore persists tasks.
type TodoStore struct {
	db *sql.DB
}

const todoColumns = `id, title, description, status, created_by, created_at, updated_at`

func (s *TodoStore) Create(ctx context.Context, t *todo.Task) error {
	const op = "pg.TodoStore.Create"

	_, err := s.db.ExecContext(ctx,
		`insert into todos (`+todoColumns+`) values ($1,$2,$3,$4,$5,$6,$7)`,
		t.ID, t.Title, t.Description, int16(t.Status), t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *TodoStore) Find(ctx context.Context, id string) (*todo.Task, error) {
	const op = "pg.TodoStore.Find"

	row := s.db.QueryRowContext(ctx,
		`select `+todoColumns+` from todos where id = $1`, id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, todo.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

func (s *TodoStore) List(ctx context.Context, limit, offset int) ([]*todo.Task, int, error) {
	const op = "pg.TodoStore.List"

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from todos`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`select `+todoColumns+` from todos order by created_at desc limit $1 offset $2`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var tasks []*todo.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	return tasks, total, nil
}

func (s *TodoStore) Update(ctx context.Context, t *todo.Task) error {
	const op = "pg.TodoStore.Update"

	res, err := s.db.ExecContext(ctx,
		`update todos set title = $2, description = $3, status = $4, updated_at = $5 where id = $1`,
		t.ID, t.Title, t.Description, int16(t.Status), t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, todo.ErrNotFound)
	}
	return nil
}

func (s *TodoStore) Delete(ctx context.Context, id string) error {
	const op = "pg.TodoStore.Delete"

	res, err := s.db.ExecContext(ctx, `delete from todos where id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, todo.ErrNotFound)
	}
	return nil
}

func scanTask(row rowScanner) (*todo.Task, error) {
	var (
		t      todo.Task
		status int16
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = todo.Status(status)
	return &t, nil
}
