package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/paddockhq/marketsync/internal/domain"
	"github.com/paddockhq/marketsync/internal/service"
)

// AuctionHandler serves the auction view and accepts the client's page
// visibility report, which gates the external sync poller.
type AuctionHandler struct {
	views  domain.ViewCache
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewAuctionHandler creates an AuctionHandler.
func NewAuctionHandler(views domain.ViewCache, bus domain.SignalBus, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{
		views:  views,
		bus:    bus,
		logger: logHandler(logger, "auction"),
	}
}

// GetAuction returns the tracked auction state alongside the external mirror.
// GET /api/auctions/{id}
func (h *AuctionHandler) GetAuction(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing listing id")
		return
	}

	view, err := h.views.GetAuction(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "auction not tracked")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: auction read failed",
			slog.String("listing_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read auction")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// visibilityRequest is the body of a visibility report.
type visibilityRequest struct {
	Visible *bool `json:"visible"`
}

// ReportVisibility forwards the client's page visibility to the auction
// watcher over the bus. Hidden pages suspend external polling; regaining
// visibility triggers an immediate sync.
// POST /api/auctions/{id}/visibility
func (h *AuctionHandler) ReportVisibility(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing listing id")
		return
	}

	var req visibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Visible == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"visible\": true|false}")
		return
	}

	payload, err := json.Marshal(map[string]bool{"visible": *req.Visible})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode visibility")
		return
	}
	if err := h.bus.Publish(r.Context(), service.VisibilityChannel(id), payload); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: visibility publish failed",
			slog.String("listing_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to publish visibility")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]bool{"visible": *req.Visible})
}
