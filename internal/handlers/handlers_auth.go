package handlers

import (
	"net/http"
	"time"

	"adconsole/internal/access"
)

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Remember bool   `json:"remember"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := a.svc.Login(r.Context(), req.Username, req.Password, req.Remember)
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, a.sessions.Cookie(res.Token, res.Session))
	respondJSON(w, http.StatusOK, map[string]any{
		"user":       newUserView(*res.User, a.svc.Now()),
		"token":      res.Token,
		"expires_at": res.Session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Logout(r.Context(), access.FromContext(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	http.SetCookie(w, a.sessions.ClearCookie())
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	p := access.FromContext(r.Context())
	u, err := a.svc.GetUser(r.Context(), p, p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user": newUserView(*u, a.svc.Now())})
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := a.svc.ChangeOwnPassword(r.Context(), access.FromContext(r.Context()), req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
