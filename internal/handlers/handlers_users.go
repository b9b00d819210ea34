package handlers

import (
	"net/http"

	"adconsole/internal/access"
	"adconsole/internal/directory"
	"adconsole/internal/models"
)

type userRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	IsActive  *bool  `json:"is_active"`
	Password  string `json:"password"`
}

func (req userRequest) input() directory.UserInput {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return directory.UserInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      models.Role(req.Role),
		IsActive:  active,
		Password:  req.Password,
	}
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := a.svc.ListUsers(r.Context(), access.FromContext(r.Context()), listQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	now := a.svc.Now()
	respondJSON(w, http.StatusOK, mapPage(page, func(u models.User) userView { return newUserView(u, now) }))
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	u, err := a.svc.GetUser(r.Context(), access.FromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user": newUserView(*u, a.svc.Now())})
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	u, err := a.svc.CreateUser(r.Context(), access.FromContext(r.Context()), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"user": newUserView(*u, a.svc.Now())})
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	u, err := a.svc.UpdateUser(r.Context(), access.FromContext(r.Context()), id, req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user": newUserView(*u, a.svc.Now())})
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.svc.DeleteUser(r.Context(), access.FromContext(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := a.svc.ResetPassword(r.Context(), access.FromContext(r.Context()), id, req.Password); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
