package handlers

import (
	"net/http"

	"github.com/scanquest/orchestrator/internal/auth"
)

// LoginRequest carries the game-master password
type LoginRequest struct {
	Password string `json:"password"`
}

func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	token, ok := h.Auth.Login(req.Password)
	if !ok {
		h.respondError(w, Unauthorized("Invalid password"))
		return
	}

	auth.SetSessionCookie(w, token)
	respondOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.CookieName); err == nil {
		h.Auth.Logout(cookie.Value)
	}
	auth.ClearSessionCookie(w)
	respondOK(w, map[string]string{"status": "ok"})
}
