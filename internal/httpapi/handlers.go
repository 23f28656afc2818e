package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/sawpanic/kalshirun/internal/metrics"
	"github.com/sawpanic/kalshirun/internal/persistence"
)

const defaultTopLimit = 25

// MarketCache is the optional hot tier consulted before the repository.
// Repository hits are written back so the next request is served hot.
type MarketCache interface {
	GetMarket(ctx context.Context, ticker string) (*persistence.MarketRecord, error)
	SetMarket(ctx context.Context, rec persistence.MarketRecord) error
	GetOrderbook(ctx context.Context, ticker string) (*persistence.OrderbookRecord, error)
	SetOrderbook(ctx context.Context, rec persistence.OrderbookRecord) error
	GetTopScored(ctx context.Context) ([]persistence.MarketRecord, error)
	SetTopScored(ctx context.Context, recs []persistence.MarketRecord) error
}

type handlers struct {
	repo  persistence.Repository
	cache MarketCache
	reg   *metrics.Registry
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	count, err := h.repo.Markets.Count(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"markets":   count,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.reg != nil {
		resp["counters"] = h.reg.Snapshot()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) topMarkets(w http.ResponseWriter, r *http.Request) {
	limit := defaultTopLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be in [1,200]"})
			return
		}
		limit = parsed
	}

	if h.cache != nil {
		if recs, err := h.cache.GetTopScored(r.Context()); err == nil && recs != nil && len(recs) >= limit {
			writeJSON(w, http.StatusOK, recs[:limit])
			return
		}
	}

	recs, err := h.repo.Markets.TopScored(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	if recs == nil {
		recs = []persistence.MarketRecord{}
	}
	if h.cache != nil {
		h.cache.SetTopScored(r.Context(), recs)
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *handlers) market(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]

	if h.cache != nil {
		if rec, err := h.cache.GetMarket(r.Context(), ticker); err == nil && rec != nil {
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}

	rec, err := h.repo.Markets.Get(r.Context(), ticker)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "market not found"})
		return
	}
	if h.cache != nil {
		h.cache.SetMarket(r.Context(), *rec)
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handlers) orderbook(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]

	if h.cache != nil {
		if rec, err := h.cache.GetOrderbook(r.Context(), ticker); err == nil && rec != nil {
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}

	rec, err := h.repo.Orderbooks.Get(r.Context(), ticker)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no deep scan recorded for market"})
		return
	}
	if h.cache != nil {
		h.cache.SetOrderbook(r.Context(), *rec)
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handlers) recentEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be in [1,500]"})
			return
		}
		limit = parsed
	}

	events, err := h.repo.Events.ListRecent(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	if events == nil {
		events = []persistence.EngineEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *handlers) notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
}
