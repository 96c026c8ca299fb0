package httpapi

import (
	"net/http"
	"strings"

	"accessdesk.org/internal/audit"
	"accessdesk.org/internal/auth"
)

type profileUpdateRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

type roleUpdateRequest struct {
	Role string `json:"role"`
}

type statusUpdateRequest struct {
	IsActive *bool `json:"is_active"`
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listUsers(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, basePath+"/users/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch path {
	case "profile":
		switch r.Method {
		case http.MethodGet:
			a.getProfile(w, r)
		case http.MethodPut:
			a.updateProfile(w, r)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
		}
		return
	case "stats":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.userStats(w, r)
		return
	}

	if id, ok := strings.CutSuffix(path, "/role"); ok {
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.updateUserRole(w, r, id)
		return
	}
	if id, ok := strings.CutSuffix(path, "/status"); ok {
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.updateUserStatus(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	a.getUser(w, r, path)
}

func (a *API) getProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	user, err := a.users.Get(r.Context(), principal.ID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) updateProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req profileUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.users.UpdateProfile(r.Context(), principal.ID, auth.ProfileUpdate{
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "user.profile.updated", map[string]any{
		"user_id": user.ID,
	})

	writeJSON(w, http.StatusOK, user)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireRole(w, r, auth.RoleAdmin); !ok {
		return
	}

	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		list, err := a.users.Search(r.Context(), q)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": list})
		return
	}
	if roleParam := strings.TrimSpace(r.URL.Query().Get("role")); roleParam != "" {
		role, err := auth.ParseRole(roleParam)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		list, err := a.users.ListByRole(r.Context(), role)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": list})
		return
	}

	list, err := a.users.List(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list})
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := a.requireRole(w, r, auth.RoleAdmin); !ok {
		return
	}
	user, err := a.users.Get(r.Context(), id)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) userStats(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireRole(w, r, auth.RoleAdmin); !ok {
		return
	}
	stats, err := a.users.Stats(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) updateUserRole(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := a.requireRole(w, r, auth.RoleAdmin)
	if !ok {
		return
	}
	var req roleUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	user, err := a.users.UpdateRole(r.Context(), id, role, principal.ID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "user.role.updated", map[string]any{
		"user_id": user.ID,
		"role":    string(user.Role),
	})

	writeJSON(w, http.StatusOK, user)
}

func (a *API) updateUserStatus(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := a.requireRole(w, r, auth.RoleAdmin)
	if !ok {
		return
	}
	var req statusUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.IsActive == nil {
		writeError(w, r, http.StatusBadRequest, "is_active is required")
		return
	}

	user, err := a.users.SetActive(r.Context(), id, *req.IsActive, principal.ID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "user.status.updated", map[string]any{
		"user_id":   user.ID,
		"is_active": user.IsActive,
	})

	writeJSON(w, http.StatusOK, user)
}
