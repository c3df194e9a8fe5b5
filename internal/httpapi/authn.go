package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"taskhive/internal/auth"
	"taskhive/internal/obs"
)

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// authenticated wraps a handler that only needs a valid access token.
func (a *API) authenticated(next func(http.ResponseWriter, *http.Request, auth.Principal)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		principal, err := a.auth.ValidateAccessToken(token)
		if err != nil {
			a.respondServiceError(w, err)
			return
		}
		r = r.WithContext(auth.ContextWithPrincipal(r.Context(), principal))
		next(w, r, principal)
	}
}

func isPermissionDenied(err error) bool {
	return errors.Is(err, auth.ErrPermissionDenied)
}

// protected wraps a handler behind a required permission. The check runs
// against the token's claim snapshot.
func (a *API) protected(required auth.Permission, next func(http.ResponseWriter, *http.Request, auth.Principal)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		principal, err := a.auth.Authorize(r.Context(), token, required)
		if err != nil {
			if isPermissionDenied(err) {
				obs.ObservePermissionDenied()
			}
			a.respondServiceError(w, err)
			return
		}
		r = r.WithContext(auth.ContextWithPrincipal(r.Context(), principal))
		next(w, r, principal)
	}
}
