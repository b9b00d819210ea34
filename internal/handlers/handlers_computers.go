package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"adconsole/internal/access"
	"adconsole/internal/directory"
	"adconsole/internal/models"
)

type computerRequest struct {
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Status          string     `json:"status"`
	OperatingSystem string     `json:"operating_system"`
	IPAddress       string     `json:"ip_address"`
	OUID            *uuid.UUID `json:"ou_id"`
}

func (req computerRequest) input() directory.ComputerInput {
	return directory.ComputerInput{
		Name:            req.Name,
		Description:     req.Description,
		Status:          models.ComputerStatus(req.Status),
		OperatingSystem: req.OperatingSystem,
		IPAddress:       req.IPAddress,
		OUID:            req.OUID,
	}
}

func (a *API) handleListComputers(w http.ResponseWriter, r *http.Request) {
	page, err := a.svc.ListComputers(r.Context(), access.FromContext(r.Context()), listQuery(r))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, mapPage(page, newComputerView))
}

func (a *API) handleGetComputer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := a.svc.GetComputer(r.Context(), access.FromContext(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"computer": newComputerView(*c)})
}

func (a *API) handleCreateComputer(w http.ResponseWriter, r *http.Request) {
	var req computerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	c, err := a.svc.CreateComputer(r.Context(), access.FromContext(r.Context()), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"computer": newComputerView(*c)})
}

func (a *API) handleUpdateComputer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req computerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	c, err := a.svc.UpdateComputer(r.Context(), access.FromContext(r.Context()), id, req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"computer": newComputerView(*c)})
}

func (a *API) handleDeleteComputer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.svc.DeleteComputer(r.Context(), access.FromContext(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	status := models.ComputerStatus(chi.URLParam(r, "status"))
	c, err := a.svc.ChangeStatus(r.Context(), access.FromContext(r.Context()), id, status)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"computer": newComputerView(*c)})
}
