// Package server exposes the order intake and competition query HTTP
// API.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"auction-engine/internal/domain"
	"auction-engine/internal/orderpool"
	"auction-engine/internal/storage"
)

// Server handles order submission, cancellation and competition record
// queries.
type Server struct {
	pool  *orderpool.Pool
	store storage.CompetitionStore
	log   zerolog.Logger
}

// New creates a server over the given pool and store.
func New(pool *orderpool.Pool, store storage.CompetitionStore, log zerolog.Logger) *Server {
	return &Server{pool: pool, store: store, log: log}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/orders", s.handleSubmitOrder)
	mux.HandleFunc("DELETE /api/v1/orders/{uid}", s.handleCancelOrder)
	mux.HandleFunc("GET /api/v1/orders", s.handleListOrders)
	mux.HandleFunc("GET /api/v1/solver_competition/latest", s.handleLatest)
	mux.HandleFunc("GET /api/v1/solver_competition/by_tx_hash/{hash}", s.handleByTransaction)
	mux.HandleFunc("GET /api/v1/solver_competition/{auctionID}", s.handleByAuction)
	return mux
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed order body")
		return
	}
	order, err := req.toOrder()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	uid, err := s.pool.Add(order)
	if err != nil {
		if errors.Is(err, orderpool.ErrDuplicateOrder) {
			writeError(w, http.StatusConflict, "order already exists")
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.log.Info().Str("uid", string(uid)).Str("owner", string(order.Owner)).Msg("order accepted")
	writeJSON(w, http.StatusCreated, map[string]string{"uid": string(uid)})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	uid := domain.OrderUID(r.PathValue("uid"))
	err := s.pool.Cancel(uid)
	switch {
	case errors.Is(err, orderpool.ErrUnknownOrder):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, orderpool.ErrOrderPending):
		writeError(w, http.StatusConflict, "order reserved by pending settlement")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleListOrders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"orders": s.pool.Open()})
}

func (s *Server) handleByAuction(w http.ResponseWriter, r *http.Request) {
	auctionID, err := strconv.ParseInt(r.PathValue("auctionID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid auction id")
		return
	}
	rec, err := s.store.ByAuction(r.Context(), domain.AuctionID(auctionID))
	s.writeRecord(w, rec, err)
}

func (s *Server) handleByTransaction(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.ByTransaction(r.Context(), r.PathValue("hash"))
	s.writeRecord(w, rec, err)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	count := 1
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid count")
			return
		}
		count = n
	}

	if count == 1 {
		rec, err := s.store.Latest(r.Context())
		s.writeRecord(w, rec, err)
		return
	}

	recs, err := s.store.LatestN(r.Context(), count)
	if err != nil {
		s.log.Error().Err(err).Msg("latest records query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	out := make([]competitionResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, encodeRecord(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeRecord(w http.ResponseWriter, rec *domain.CompetitionRecord, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "competition not found")
	case err != nil:
		s.log.Error().Err(err).Msg("record query failed")
		writeError(w, http.StatusInternalServerError, "query failed")
	default:
		writeJSON(w, http.StatusOK, encodeRecord(rec))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
