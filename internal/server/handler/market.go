package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/paddockhq/marketsync/internal/domain"
)

// MarketHandler serves the per-listing market views (book, quote, tape,
// signal) straight from the view cache. The watchers keep the cache current;
// a miss means the listing is not being watched or its views have expired.
type MarketHandler struct {
	views  domain.ViewCache
	logger *slog.Logger
}

// NewMarketHandler creates a MarketHandler reading from the given view cache.
func NewMarketHandler(views domain.ViewCache, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		views:  views,
		logger: logHandler(logger, "market"),
	}
}

// GetBook returns the aggregated order book for a listing.
// GET /api/markets/{id}/book
func (h *MarketHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing listing id")
		return
	}

	book, err := h.views.GetBook(r.Context(), id)
	if err != nil {
		h.writeViewError(w, r, id, "book", err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// GetQuote returns the NBBO quote for a listing.
// GET /api/markets/{id}/quote
func (h *MarketHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing listing id")
		return
	}

	quote, err := h.views.GetQuote(r.Context(), id)
	if err != nil {
		h.writeViewError(w, r, id, "quote", err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// GetTape returns recent trades for a listing, newest first.
// GET /api/markets/{id}/tape
func (h *MarketHandler) GetTape(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing listing id")
		return
	}

	trades, err := h.views.GetTape(r.Context(), id)
	if err != nil {
		h.writeViewError(w, r, id, "tape", err)
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, trades)
}

// GetSignal returns the latest derived trading signal for a listing.
// GET /api/markets/{id}/signal
func (h *MarketHandler) GetSignal(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing listing id")
		return
	}

	sig, err := h.views.GetSignal(r.Context(), id)
	if err != nil {
		h.writeViewError(w, r, id, "signal", err)
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

func (h *MarketHandler) writeViewError(w http.ResponseWriter, r *http.Request, id, view string, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, view+" not available for listing")
		return
	}
	h.logger.ErrorContext(r.Context(), "handler: view read failed",
		slog.String("listing_id", id),
		slog.String("view", view),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, "failed to read "+view)
}
