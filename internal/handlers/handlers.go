// Package handlers exposes the orchestrator's command surface over HTTP.
// Stations submit scans and read state; the game-master API behind auth
// drives sessions, scores, and the shared display.
package handlers

import (
	"github.com/scanquest/orchestrator/internal/auth"
	"github.com/scanquest/orchestrator/internal/catalog"
	"github.com/scanquest/orchestrator/internal/devices"
	"github.com/scanquest/orchestrator/internal/display"
	"github.com/scanquest/orchestrator/internal/hub"
	"github.com/scanquest/orchestrator/internal/logger"
	"github.com/scanquest/orchestrator/internal/session"
	"github.com/scanquest/orchestrator/internal/transactions"
)

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Sessions  *session.Manager
	Processor *transactions.Processor
	Display   *display.Orchestrator
	Registry  *devices.Registry
	Catalog   *catalog.Catalog
	Hub       *hub.Hub
	Auth      *auth.Auth
	Log       logger.Logger

	// Base URL stations use to reach this server; rendered into the join QR
	BaseURL string
}

// New creates the handler set
func New(
	sessions *session.Manager,
	processor *transactions.Processor,
	disp *display.Orchestrator,
	registry *devices.Registry,
	cat *catalog.Catalog,
	h *hub.Hub,
	adminAuth *auth.Auth,
	log logger.Logger,
	baseURL string,
) *Handlers {
	return &Handlers{
		Sessions:  sessions,
		Processor: processor,
		Display:   disp,
		Registry:  registry,
		Catalog:   cat,
		Hub:       h,
		Auth:      adminAuth,
		Log:       log,
		BaseURL:   baseURL,
	}
}
