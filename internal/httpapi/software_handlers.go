package httpapi

import (
	"net/http"
	"strings"

	"accessdesk.org/internal/audit"
	"accessdesk.org/internal/auth"
	"accessdesk.org/internal/catalog"
)

type softwareRequest struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	AccessLevels []string `json:"access_levels"`
}

type softwareUpdateRequest struct {
	Name         *string  `json:"name"`
	Description  *string  `json:"description"`
	AccessLevels []string `json:"access_levels"`
}

func (a *API) handleSoftwareCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listSoftware(w, r)
	case http.MethodPost:
		a.createSoftware(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleSoftwareResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, basePath+"/software/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getSoftware(w, r, id)
	case http.MethodPut:
		a.updateSoftware(w, r, id)
	case http.MethodDelete:
		a.deleteSoftware(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) listSoftware(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.principal(w, r); !ok {
		return
	}
	list, err := a.catalog.List(r.Context())
	if err != nil {
		handleCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list})
}

func (a *API) getSoftware(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := a.principal(w, r); !ok {
		return
	}
	sw, err := a.catalog.Get(r.Context(), id)
	if err != nil {
		handleCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sw)
}

func (a *API) createSoftware(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireRole(w, r, auth.RoleAdmin); !ok {
		return
	}
	var req softwareRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	levels, err := parseLevels(req.AccessLevels)
	if err != nil {
		handleCatalogError(w, r, err)
		return
	}

	sw, err := a.catalog.Create(r.Context(), req.Name, req.Description, levels)
	if err != nil {
		handleCatalogError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "software.created", map[string]any{
		"software_id": sw.ID,
		"name":        sw.Name,
	})

	w.Header().Set("Location", basePath+"/software/"+sw.ID)
	writeJSON(w, http.StatusCreated, sw)
}

func (a *API) updateSoftware(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := a.requireRole(w, r, auth.RoleAdmin); !ok {
		return
	}
	var req softwareUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	upd := catalog.SoftwareUpdate{
		Name:        req.Name,
		Description: req.Description,
	}
	if req.AccessLevels != nil {
		levels, err := parseLevels(req.AccessLevels)
		if err != nil {
			handleCatalogError(w, r, err)
			return
		}
		upd.AccessLevels = levels
	}

	sw, err := a.catalog.Update(r.Context(), id, upd)
	if err != nil {
		handleCatalogError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "software.updated", map[string]any{
		"software_id": sw.ID,
	})

	writeJSON(w, http.StatusOK, sw)
}

func (a *API) deleteSoftware(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := a.requireRole(w, r, auth.RoleAdmin); !ok {
		return
	}
	if err := a.catalog.Delete(r.Context(), id); err != nil {
		handleCatalogError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "software.deleted", map[string]any{
		"software_id": id,
	})

	w.WriteHeader(http.StatusNoContent)
}

func parseLevels(raw []string) ([]catalog.AccessLevel, error) {
	levels := make([]catalog.AccessLevel, 0, len(raw))
	for _, s := range raw {
		level, err := catalog.ParseAccessLevel(s)
		if err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	return levels, nil
}
