package handlers

import "net/http"

// CreateSessionRequest is the body for starting a new session
type CreateSessionRequest struct {
	Name  string   `json:"name"`
	Teams []string `json:"teams"`
}

// handleCreateSession starts a new session, implicitly ending any session
// still in progress
func (h *Handlers) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	s, err := h.Sessions.Create(r.Context(), req.Name, req.Teams)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondCreated(w, s)
}

// handleGetSession returns the current session, or 404 if none ever existed
func (h *Handlers) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s := h.Sessions.Current()
	if s == nil {
		h.respondError(w, NotFound("no session exists"))
		return
	}
	respondOK(w, s)
}

func (h *Handlers) handlePauseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Pause(r.Context()); err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, h.Sessions.Current())
}

func (h *Handlers) handleResumeSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Resume(r.Context()); err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, h.Sessions.Current())
}

func (h *Handlers) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.End(r.Context()); err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, h.Sessions.Current())
}
