package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"taskhive/internal/auth"
)

func (a *API) ListUsers(w http.ResponseWriter, r *http.Request, _ auth.Principal) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	users, err := a.auth.ListUsers(r.Context(), limit, offset)
	if err != nil {
		a.respondServiceError(w, err)
		return
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, newUserView(u))
	}
	respondData(w, http.StatusOK, "", views)
}

func (a *API) CreateUser(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		UserName  string `json:"user_name"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		Role      string `json:"role"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.auth.CreateUser(r.Context(), principal, auth.CreateUserParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		UserName:  req.UserName,
		Email:     req.Email,
		Password:  req.Password,
		Role:      role,
	})
	if err != nil {
		a.respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusCreated, "user created", newUserView(user))
}

func (a *API) GetUser(w http.ResponseWriter, r *http.Request, _ auth.Principal) {
	user, err := a.auth.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		a.respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, "", newUserView(user))
}

func (a *API) UpdateUserInfo(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.auth.UpdateUserInfo(r.Context(), principal, r.PathValue("id"), req.FirstName, req.LastName)
	if err != nil {
		a.respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, "user updated", newUserView(user))
}

func (a *API) DeleteUser(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	if err := a.auth.DeleteUser(r.Context(), principal, r.PathValue("id")); err != nil {
		a.respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, "user deleted", nil)
}

func (a *API) UserRoles(w http.ResponseWriter, r *http.Request, _ auth.Principal) {
	role, err := a.auth.RoleOf(r.Context(), r.PathValue("id"))
	if err != nil {
		a.respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, "", map[string]any{"roles": []string{role.String()}})
}

func (a *API) ChangeRole(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	var req struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.auth.ChangeRole(r.Context(), principal, r.PathValue("id"), role)
	if err != nil {
		a.respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, "role changed", newUserView(user))
}

func (a *API) UserPermissions(w http.ResponseWriter, r *http.Request, _ auth.Principal) {
	perms, err := a.auth.PermissionsOf(r.Context(), r.PathValue("id"))
	if err != nil {
		a.respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, "", map[string]any{"permissions": perms})
}

func (a *API) GrantPermission(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	a.mutatePermission(w, r, principal, a.auth.GrantPermission, "permission granted")
}

func (a *API) RevokePermission(w http.ResponseWriter, r *http.Request, principal auth.Principal) {
	a.mutatePermission(w, r, principal, a.auth.RevokePermission, "permission revoked")
}

func (a *API) mutatePermission(
	w http.ResponseWriter,
	r *http.Request,
	principal auth.Principal,
	apply func(ctx context.Context, actor auth.Principal, userID string, perm auth.Permission) (*auth.User, error),
	message string,
) {
	var req struct {
		Permission string `json:"permission"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	perm, err := auth.ParsePermission(req.Permission)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := apply(r.Context(), principal, r.PathValue("id"), perm)
	if err != nil {
		a.respondServiceError(w, err)
		return
	}
	respondData(w, http.StatusOK, message, newUserView(user))
}
