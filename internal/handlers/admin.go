package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/scanquest/orchestrator/internal/models"
)

// handleDeleteTransaction removes a transaction and rebuilds the affected
// team's score from the remaining log
func (h *Handlers) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.respondError(w, BadRequest("Missing transaction id"))
		return
	}

	result, err := h.Processor.DeleteTransaction(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, result)
}

// AdjustScoreRequest is the body for a manual score adjustment
type AdjustScoreRequest struct {
	TeamID string `json:"team_id"`
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

func (h *Handlers) handleAdjustScore(w http.ResponseWriter, r *http.Request) {
	var req AdjustScoreRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	score, err := h.Processor.AdjustScore(r.Context(), req.TeamID, req.Delta, req.Reason)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, score)
}

func (h *Handlers) handleResetScores(w http.ResponseWriter, r *http.Request) {
	teams, err := h.Processor.ResetScores(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, map[string][]string{"teams": teams})
}

// SetDisplayModeRequest selects a persistent display mode
type SetDisplayModeRequest struct {
	Mode string `json:"mode"`
}

func (h *Handlers) handleSetDisplayMode(w http.ResponseWriter, r *http.Request) {
	var req SetDisplayModeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	var state models.DisplayState
	switch models.DisplayMode(req.Mode) {
	case models.ModeIdleLoop:
		state = h.Display.SetIdleLoop()
	case models.ModeScoreboard:
		state = h.Display.SetScoreboard()
	default:
		h.respondError(w, BadRequest("Mode must be IDLE_LOOP or SCOREBOARD"))
		return
	}
	respondOK(w, state)
}

// EnqueueVideoRequest queues a token's video for the shared display
type EnqueueVideoRequest struct {
	TokenID     string `json:"token_id"`
	RequestedBy string `json:"requested_by"`
}

func (h *Handlers) handleEnqueueVideo(w http.ResponseWriter, r *http.Request) {
	var req EnqueueVideoRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	item, err := h.Display.EnqueueVideo(r.Context(), req.TokenID, req.RequestedBy)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondCreated(w, item)
}

func (h *Handlers) handleClearVideoQueue(w http.ResponseWriter, r *http.Request) {
	dropped := h.Display.ClearQueue()
	respondOK(w, map[string]int{"dropped": dropped})
}

func (h *Handlers) handleListDevices(w http.ResponseWriter, r *http.Request) {
	respondOK(w, h.Registry.List())
}

// handleJoinQR renders a QR code of the station join URL so handheld
// scanners can onboard by pointing a camera at the game-master screen
func (h *Handlers) handleJoinQR(w http.ResponseWriter, r *http.Request) {
	if h.BaseURL == "" {
		h.respondError(w, BadRequest("No base URL configured"))
		return
	}

	png, err := qrcode.Encode(h.BaseURL, qrcode.Medium, 256)
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
