package handlers

import (
	"net/http"

	"github.com/scanquest/orchestrator/internal/transactions"
)

// handleSubmitScan ingests one token presentation from a station. Duplicates
// and rejections come back as normal responses with the matching transaction
// status; only malformed requests produce HTTP errors.
func (h *Handlers) handleSubmitScan(w http.ResponseWriter, r *http.Request) {
	var req transactions.ScanRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	result, err := h.Processor.ProcessScan(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, result)
}

// handleGetState returns the same snapshot the hub pushes as sync:full, for
// stations that poll instead of holding a socket open
func (h *Handlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	respondOK(w, h.Hub.Snapshot())
}

// handleListTokens returns the loaded token catalog
func (h *Handlers) handleListTokens(w http.ResponseWriter, r *http.Request) {
	respondOK(w, h.Catalog.All())
}
