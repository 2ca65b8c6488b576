package api

import (
	"archivist/internal/types"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /archives/prepare", h.handlePrepare)
	mux.HandleFunc("GET /archives/{id}", h.handleGetArchive)
	mux.HandleFunc("POST /visits", h.handleTrack)
	mux.HandleFunc("POST /invalidations", h.handleInvalidate)
	mux.HandleFunc("PUT /sites/{id}", h.handlePutSite)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (h *Handler) handlePrepare(w http.ResponseWriter, r *http.Request) {
	var req PrepareRequest
	if !readJSON(w, r, &req) {
		return
	}
	res, err := h.Svc.Prepare(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	code := http.StatusOK
	if res.Outcome == types.OutcomeBusy.String() {
		code = http.StatusAccepted
	}
	if err := writeJSON(w, code, res); err != nil {
		log.WithError(err).Warn("failed to write response")
	}
}

func (h *Handler) handleGetArchive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid archive id", http.StatusBadRequest)
		return
	}
	res, err := h.Svc.Archive(r.Context(), types.ArchiveID(id))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, res); err != nil {
		log.WithError(err).Warn("failed to write response")
	}
}

func (h *Handler) handleTrack(w http.ResponseWriter, r *http.Request) {
	var v types.Visit
	if !readJSON(w, r, &v) {
		return
	}
	if err := h.Svc.Track(r.Context(), v); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var req InvalidateRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := h.Svc.Invalidate(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePutSite(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid site id", http.StatusBadRequest)
		return
	}
	var site types.Site
	if !readJSON(w, r, &site) {
		return
	}
	site.ID = id
	if err := h.Svc.RegisterSite(r.Context(), site); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readJSON decodes a bounded request body into v. It writes the error response itself and
// reports whether decoding succeeded.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	defer func() {
		_ = r.Body.Close()
	}()
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return false
	}
	if len(body) == 0 {
		http.Error(w, "empty body", http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidParams):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
	}
	http.Error(w, err.Error(), code)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}
