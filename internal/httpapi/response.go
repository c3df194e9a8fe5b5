package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"taskhive/internal/auth"
	"taskhive/internal/todo"
)

// Response is the structured envelope every endpoint answers with.
type Response struct {
	Succeeded bool     `json:"succeeded"`
	Message   string   `json:"message,omitempty"`
	Errors    []string `json:"errors,omitempty"`
	Data      any      `json:"data,omitempty"`
}

// PagedResponse extends Response with paging metadata.
type PagedResponse struct {
	Response
	PageNumber   int `json:"page_number"`
	PageSize     int `json:"page_size"`
	TotalPages   int `json:"total_pages"`
	TotalRecords int `json:"total_records"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondData(w http.ResponseWriter, code int, message string, data any) {
	writeJSON(w, code, Response{Succeeded: true, Message: message, Data: data})
}

func respondError(w http.ResponseWriter, code int, message string, fieldErrors ...string) {
	writeJSON(w, code, Response{Succeeded: false, Message: message, Errors: fieldErrors})
}

func respondPageItems(w http.ResponseWriter, page *todo.Page, items any) {
	totalPages := 0
	if page.PageSize > 0 {
		totalPages = (page.TotalRecords + page.PageSize - 1) / page.PageSize
	}
	writeJSON(w, http.StatusOK, PagedResponse{
		Response:     Response{Succeeded: true, Data: items},
		PageNumber:   page.PageNumber,
		PageSize:     page.PageSize,
		TotalPages:   totalPages,
		TotalRecords: page.TotalRecords,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// respondServiceError maps the core error taxonomy to HTTP statuses.
// Anything unrecognized is an infrastructure failure and stays generic.
func (a *API) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrAccountNotConfirmed):
		respondError(w, http.StatusForbidden, "account not confirmed")
	case errors.Is(err, auth.ErrTokenExpired):
		respondError(w, http.StatusUnauthorized, "token expired")
	case errors.Is(err, auth.ErrTokenInvalid):
		respondError(w, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, auth.ErrRefreshTokenInactive):
		respondError(w, http.StatusUnauthorized, "refresh token is no longer active")
	case errors.Is(err, auth.ErrPermissionDenied):
		respondError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, auth.ErrNotFound), errors.Is(err, todo.ErrNotFound):
		respondError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, auth.ErrAlreadyExists):
		respondError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, todo.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		a.logger.Error("internal error", "error", err.Error())
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
