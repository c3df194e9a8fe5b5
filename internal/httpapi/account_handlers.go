package httpapi

import (
	"net/http"
	"time"

	"taskhive/internal/auth"
	"taskhive/internal/obs"
)

const refreshCookieName = "refreshToken"

type userView struct {
	ID             string   `json:"id"`
	FirstName      string   `json:"first_name,omitempty"`
	LastName       string   `json:"last_name,omitempty"`
	UserName       string   `json:"user_name"`
	Email          string   `json:"email"`
	Role           string   `json:"role"`
	Permissions    []string `json:"permissions"`
	EmailConfirmed bool     `json:"email_confirmed"`
}

func newUserView(u *auth.User) userView {
	return userView{
		ID:             u.ID,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		UserName:       u.UserName,
		Email:          u.Email,
		Role:           u.Role.String(),
		Permissions:    u.Permissions.Strings(),
		EmailConfirmed: u.EmailConfirmed,
	}
}

type sessionView struct {
	User             userView  `json:"user"`
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func (a *API) respondSession(w http.ResponseWriter, message string, s *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    s.RefreshToken,
		Path:     "/v1/account",
		Expires:  s.RefreshExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	respondData(w, http.StatusOK, message, sessionView{
		User:             newUserView(s.User),
		AccessToken:      s.AccessToken,
		AccessExpiresAt:  s.AccessExpiresAt,
		RefreshToken:     s.RefreshToken,
		RefreshExpiresAt: s.RefreshExpiresAt,
	})
}

func (a *API) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := a.auth.Authenticate(r.Context(), req.Login, req.Password, clientIP(r))
	if err != nil {
		obs.ObserveLogin("failure")
		a.respondServiceError(w, err)
		return
	}
	obs.ObserveLogin("success")
	a.respondSession(w, "authenticated", session)
}

// RefreshToken rotates the refresh token. The token may arrive in the body
// or in the cookie set by a previous authentication.
func (a *API) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	// The body is optional, the cookie is the fallback.
	_ = decodeJSON(w, r, &req)
	if req.Token == "" {
		if c, err := r.Cookie(refreshCookieName); err == nil {
			req.Token = c.Value
		}
	}
	if req.Token == "" {
		respondError(w, http.StatusBadRequest, "refresh token is required")
		return
	}

	session, err := a.auth.Refresh(r.Context(), req.Token, clientIP(r))
	if err != nil {
		obs.ObserveTokenRefresh("failure")
		a.respondServiceError(w, err)
		return
	}
	obs.ObserveTokenRefresh("success")
	a.respondSession(w, "token refreshed", session)
}

func (a *API) Logout(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	if err := a.auth.Logout(r.Context(), principal.UserID, clientIP(r)); err != nil {
		a.respondServiceError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/v1/account",
		MaxAge:   -1,
		HttpOnly: true,
	})
	respondData(w, http.StatusOK, "logged out", nil)
}

func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		UserName  string `json:"user_name"`
		Email     string `json:"email"`
		Password  string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.auth.Register(r.Context(), auth.RegisterParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		UserName:  req.UserName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		a.respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusCreated, "registered, confirmation sent", newUserView(user))
}

func (a *API) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	code := r.URL.Query().Get("code")
	if userID == "" || code == "" {
		respondError(w, http.StatusBadRequest, "user_id and code are required")
		return
	}
	if err := a.auth.ConfirmEmail(r.Context(), userID, code); err != nil {
		a.respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, "email confirmed", nil)
}

func (a *API) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		a.respondServiceError(w, err)
		return
	}
	// Always succeeds for unknown addresses as well.
	respondData(w, http.StatusOK, "if the account exists, a reset code has been sent", nil)
}

func (a *API) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Code     string `json:"code"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.ResetPassword(r.Context(), req.Email, req.Code, req.Password); err != nil {
		a.respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, "password reset", nil)
}
