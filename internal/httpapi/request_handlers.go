package httpapi

import (
	"net/http"
	"strings"

	"accessdesk.org/internal/audit"
	"accessdesk.org/internal/auth"
	"accessdesk.org/internal/catalog"
	"accessdesk.org/internal/request"
)

type createRequestRequest struct {
	SoftwareID string `json:"software_id"`
	AccessType string `json:"access_type"`
	Reason     string `json:"reason"`
}

type decideRequestRequest struct {
	Status  string  `json:"status"`
	Comment *string `json:"comment"`
}

func (a *API) handleRequestsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createRequest(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

func (a *API) handleRequestResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, basePath+"/requests/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch path {
	case "my-requests":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.listMyRequests(w, r)
		return
	case "pending":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.listPendingRequests(w, r)
		return
	}

	if id, ok := strings.CutSuffix(path, "/status"); ok {
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.decideRequest(w, r, id)
		return
	}
	if id, ok := strings.CutSuffix(path, "/history"); ok {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.requestHistory(w, r, id)
		return
	}

	writeError(w, r, http.StatusNotFound, "resource not found")
}

func (a *API) createRequest(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req createRequestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	created, err := a.requests.Create(r.Context(), principal.ID, req.SoftwareID, catalog.AccessLevel(strings.TrimSpace(req.AccessType)), req.Reason)
	if err != nil {
		handleRequestError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "request.created", map[string]any{
		"request_id":  created.ID,
		"software_id": created.SoftwareID,
		"access_type": string(created.AccessType),
	})

	w.Header().Set("Location", basePath+"/requests/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) listMyRequests(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.principal(w, r)
	if !ok {
		return
	}
	list, err := a.requests.ListForUser(r.Context(), principal.ID)
	if err != nil {
		handleRequestError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list})
}

func (a *API) listPendingRequests(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireRole(w, r, auth.RoleManager, auth.RoleAdmin); !ok {
		return
	}
	list, err := a.requests.ListPending(r.Context())
	if err != nil {
		handleRequestError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list})
}

func (a *API) decideRequest(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := a.requireRole(w, r, auth.RoleManager, auth.RoleAdmin)
	if !ok {
		return
	}
	var req decideRequestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	status, err := request.ParseStatus(req.Status)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "status must be Approved or Rejected")
		return
	}

	dec, err := a.requests.Transition(r.Context(), id, principal.ID, status, req.Comment)
	if err != nil {
		handleRequestError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "request.decided", map[string]any{
		"request_id": dec.Request.ID,
		"old_status": string(dec.History.OldStatus),
		"new_status": string(dec.History.NewStatus),
	})

	writeJSON(w, http.StatusOK, dec)
}

func (a *API) requestHistory(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := a.requests.Get(r.Context(), id); err != nil {
		handleRequestError(w, r, err)
		return
	}

	hist, err := a.requests.History(r.Context(), id)
	if err != nil {
		handleRequestError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": hist})
}
