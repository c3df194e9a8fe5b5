package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"taskhive/internal/todo"
)

func todoRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "description", "status", "created_by", "created_at", "updated_at",
	})
}

func TestTodoList(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`select count\(\*\) from todos`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(`select (.+) from todos order by created_at desc`).
		WithArgs(10, 0).
		WillReturnRows(todoRows().
			AddRow("t1", "newest", "", int16(todo.StatusOpening), "user-1", now, now).
			AddRow("t2", "older", "d", int16(todo.StatusDone), "user-2", now.Add(-time.Hour), now))

	tasks, total, err := store.Todos().List(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 12 {
		t.Fatalf("total = %d", total)
	}
	if len(tasks) != 2 || tasks[0].ID != "t1" {
		t.Fatalf("unexpected page: %+v", tasks)
	}
	if tasks[1].Status != todo.StatusDone {
		t.Fatalf("status = %v", tasks[1].Status)
	}
}

func TestTodoFindNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`select (.+) from todos where id`).
		WithArgs("missing").
		WillReturnRows(todoRows())

	_, err := store.Todos().Find(context.Background(), "missing")
	if !errors.Is(err, todo.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestTodoUpdateNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`update todos set`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Todos().Update(context.Background(), &todo.Task{
		ID:        "missing",
		Title:     "x",
		Status:    todo.StatusOpening,
		UpdatedAt: now,
	})
	if !errors.Is(err, todo.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestTodoCreateAndDelete(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`insert into todos`).
		WithArgs("t1", "title", "desc", int16(todo.StatusOpening), "user-1", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Todos().Create(context.Background(), &todo.Task{
		ID:          "t1",
		Title:       "title",
		Description: "desc",
		Status:      todo.StatusOpening,
		CreatedBy:   "user-1",
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	mock.ExpectExec(`delete from todos`).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.Todos().Delete(context.Background(), "t1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
