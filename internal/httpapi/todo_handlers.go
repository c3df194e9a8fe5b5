package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"taskhive/internal/auth"
	"taskhive/internal/todo"
)

type taskView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      int16     `json:"status"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newTaskView(t *todo.Task) taskView {
	return taskView{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      int16(t.Status),
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (a *API) ListTodos(w http.ResponseWriter, r *http.Request, _ auth.Principal) {
	q := r.URL.Query()
	number, _ := strconv.Atoi(q.Get("page_number"))
	size, _ := strconv.Atoi(q.Get("page_size"))

	page, err := a.todos.List(r.Context(), todo.PageFilter{Number: number, Size: size})
	if err != nil {
		a.respondServiceError(w, err)
		return
	}
	views := make([]taskView, 0, len(page.Items))
	for _, t := range page.Items {
		views = append(views, newTaskView(t))
	}
	respondPageItems(w, page, views)
}

func (a *API) CreateTodo(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := a.todos.Create(r.Context(), principal, req.Title, req.Description)
	if err != nil {
		a.respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusCreated, "task created", newTaskView(task))
}

func (a *API) GetTodo(w http.ResponseWriter, r *http.Request, _ auth.Principal) {
	task, err := a.todos.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		a.respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, "", newTaskView(task))
}

func (a *API) UpdateTodo(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Status      *int16  `json:"status"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	upd := todo.Update{Title: req.Title, Description: req.Description}
	if req.Status != nil {
		status := todo.Status(*req.Status)
		upd.Status = &status
	}

	task, err := a.todos.Apply(r.Context(), principal, r.PathValue("id"), upd)
	if err != nil {
		a.respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, "task updated", newTaskView(task))
}

func (a *API) DeleteTodo(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	if err := a.todos.Delete(r.Context(), principal, r.PathValue("id")); err != nil {
		a.respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, "task deleted", nil)
}
