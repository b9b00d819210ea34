package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"adconsole/internal/access"
	"adconsole/internal/directory"
)

type ouRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ParentID    *uuid.UUID `json:"parent_id"`
}

func (req ouRequest) input() directory.OUInput {
	return directory.OUInput{Name: req.Name, Description: req.Description, ParentID: req.ParentID}
}

func (a *API) handleListOUs(w http.ResponseWriter, r *http.Request) {
	ous, err := a.svc.ListOUs(r.Context(), access.FromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]ouView, 0, len(ous))
	for _, o := range ous {
		items = append(items, fromDirectoryOU(o))
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleGetOU(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	ou, err := a.svc.GetOU(r.Context(), access.FromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ou": fromDirectoryOU(*ou)})
}

func (a *API) handleCreateOU(w http.ResponseWriter, r *http.Request) {
	var req ouRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p := access.FromContext(r.Context())
	ou, err := a.svc.CreateOU(r.Context(), p, req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	a.respondOU(w, r, p, ou.ID, http.StatusCreated)
}

func (a *API) handleUpdateOU(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req ouRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p := access.FromContext(r.Context())
	if _, err := a.svc.UpdateOU(r.Context(), p, id, req.input()); err != nil {
		writeError(w, err)
		return
	}
	a.respondOU(w, r, p, id, http.StatusOK)
}

// respondOU reloads the OU so the response carries its resolved path.
func (a *API) respondOU(w http.ResponseWriter, r *http.Request, p *access.Principal, id uuid.UUID, status int) {
	ou, err := a.svc.GetOU(r.Context(), p, id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, status, map[string]any{"ou": fromDirectoryOU(*ou)})
}

func (a *API) handleDeleteOU(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.svc.DeleteOU(r.Context(), access.FromContext(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
