package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/jfaulkner/mailharvest/internal/crawl"
	"github.com/jfaulkner/mailharvest/internal/kpi"
	"github.com/jfaulkner/mailharvest/internal/store"
	"github.com/jfaulkner/mailharvest/internal/verify"
)

type runRequest struct {
	EmailLimit        *int `json:"email_limit"`
	ListingPages      *int `json:"listing_pages"`
	ModelPagesPerUser *int `json:"model_pages_per_user"`
}

type verifyRequest struct {
	Email         string `json:"email"`
	RequireDotCom bool   `json:"require_dot_com"`
	Probe         bool   `json:"probe"`
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	params := crawl.Params{
		EmailLimit:        valueOrDefault(req.EmailLimit, s.cfg.Crawl.EmailLimit),
		ListingPages:      valueOrDefault(req.ListingPages, s.cfg.Crawl.ListingPages),
		ModelPagesPerUser: valueOrDefault(req.ModelPagesPerUser, s.cfg.Crawl.ModelPagesPerUser),
	}
	if params.EmailLimit <= 0 || params.ListingPages <= 0 || params.ModelPagesPerUser < 0 {
		writeError(w, http.StatusBadRequest, "run parameters must be positive")
		return
	}

	if err := s.runner.StartRun(r.Context(), params); err != nil {
		if errors.Is(err, crawl.ErrRunActive) {
			writeError(w, http.StatusConflict, "crawl run already active")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "started",
		"params": params,
	})
}

func (s *Server) activeRun(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"running": s.runner.IsActive()})
}

func (s *Server) latestRun(w http.ResponseWriter, _ *http.Request) {
	summary := s.runner.LastSummary()
	if summary == nil {
		writeError(w, http.StatusNotFound, "no completed run")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// kpiView rebuilds the aggregate view from the store on every request, then
// overlays run-scoped fields from the latest in-memory summary. The
// persisted snapshot only backfills when the store contributed nothing,
// which happens right after a restart with stale data elsewhere.
func (s *Server) kpiView(w http.ResponseWriter, _ *http.Request) {
	view, err := kpi.Compute(s.emails)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "kpi recompute failed")
		return
	}
	kpi.Overlay(&view, s.runner.LastSummary())
	kpi.FillFromSnapshot(&view, s.cfg.Store.SnapshotPath)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) tailEmails(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	records, err := s.emails.Tail(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "read store failed")
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) verifyAddress(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	address := strings.TrimSpace(req.Email)
	if address == "" {
		writeError(w, http.StatusBadRequest, "email required")
		return
	}
	result := s.verifier.Verify(r.Context(), address, verify.Options{
		RequireDotCom: req.RequireDotCom,
		Probe:         req.Probe,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"email":   address,
		"status":  result.Status,
		"reasons": result.Reasons,
	})
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}
