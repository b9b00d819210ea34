package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"adconsole/internal/access"
	"adconsole/internal/directory"
	"adconsole/internal/models"
)

type groupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Permissions string `json:"permissions"`
}

func (req groupRequest) input() directory.GroupInput {
	return directory.GroupInput{
		Name:        req.Name,
		Description: req.Description,
		Permissions: models.Permission(req.Permissions),
	}
}

func (a *API) handleListGroups(w http.ResponseWriter, r *http.Request) {
	page, err := a.svc.ListGroups(r.Context(), access.FromContext(r.Context()), listQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, mapPage(page, newGroupView))
}

func (a *API) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	g, err := a.svc.GetGroup(r.Context(), access.FromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"group": newGroupView(*g)})
}

func (a *API) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	g, err := a.svc.CreateGroup(r.Context(), access.FromContext(r.Context()), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"group": newGroupView(*g)})
}

func (a *API) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req groupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	g, err := a.svc.UpdateGroup(r.Context(), access.FromContext(r.Context()), id, req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"group": newGroupView(*g)})
}

func (a *API) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.svc.DeleteGroup(r.Context(), access.FromContext(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAddMember(w http.ResponseWriter, r *http.Request) {
	a.membership(w, r, a.svc.AddMember)
}

func (a *API) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	a.membership(w, r, a.svc.RemoveMember)
}

type membershipOp func(ctx context.Context, p *access.Principal, groupID, userID uuid.UUID) error

func (a *API) membership(w http.ResponseWriter, r *http.Request, op membershipOp) {
	groupID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := op(r.Context(), access.FromContext(r.Context()), groupID, userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
