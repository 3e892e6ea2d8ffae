package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// conditionalHTTPLogger only logs requests when the logger runs at debug
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logged := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.Level() <= slog.LevelDebug {
			logged.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Timeout(60 * time.Second))

	// WebSocket: stations, admin consoles, and displays connect here
	r.Get("/ws", h.Hub.ServeWs)

	// Station API (public on the venue LAN)
	r.Post("/api/scan", h.handleSubmitScan)
	r.Get("/api/state", h.handleGetState)
	r.Get("/api/tokens", h.handleListTokens)

	// Auth
	r.Post("/api/admin/login", h.handleLogin)
	r.Post("/api/admin/logout", h.handleLogout)

	// Game-master API (protected)
	r.Group(func(r chi.Router) {
		r.Use(h.Auth.RequireAuthAPI)

		// Session lifecycle
		r.Post("/api/admin/session", h.handleCreateSession)
		r.Get("/api/admin/session", h.handleGetSession)
		r.Post("/api/admin/session/pause", h.handlePauseSession)
		r.Post("/api/admin/session/resume", h.handleResumeSession)
		r.Post("/api/admin/session/end", h.handleEndSession)

		// Transactions and scores
		r.Delete("/api/admin/transactions/{id}", h.handleDeleteTransaction)
		r.Post("/api/admin/score/adjust", h.handleAdjustScore)
		r.Post("/api/admin/scores/reset", h.handleResetScores)

		// Display control
		r.Post("/api/admin/display/mode", h.handleSetDisplayMode)
		r.Post("/api/admin/video/enqueue", h.handleEnqueueVideo)
		r.Post("/api/admin/video/clear", h.handleClearVideoQueue)

		// Devices and onboarding
		r.Get("/api/admin/devices", h.handleListDevices)
		r.Get("/api/admin/join-qr", h.handleJoinQR)
	})

	return r
}
