package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jules-maulard/clash-royale-analytics/internal/adapters/repository"
	"github.com/jules-maulard/clash-royale-analytics/internal/domain/model"
)

const defaultPairsLimit = 20

// PairsSource reads scored pairs of exported runs.
type PairsSource interface {
	LatestRun(ctx context.Context) (string, error)
	TopPairs(ctx context.Context, runID, order string, limit int) ([]model.PredictionRecord, error)
}

// Pair is the JSON shape of a scored archetype pair.
type Pair struct {
	A             string  `json:"a"`
	B             string  `json:"b"`
	ObservedCount int64   `json:"observed_count"`
	ObservedWinA  int64   `json:"observed_win_a"`
	CountA        int64   `json:"count_a"`
	CountB        int64   `json:"count_b"`
	ExpectedScore float64 `json:"expected_score"`
	Ratio         float64 `json:"ratio"`
}

// PairsResponse is returned by GET /pairs.
type PairsResponse struct {
	RunID string `json:"run_id"`
	Order string `json:"order"`
	Pairs []Pair `json:"pairs"`
}

// PairsHandler handles report queries.
type PairsHandler struct {
	source   PairsSource
	maxLimit int
}

// NewPairsHandler creates a pairs handler capping limit at maxLimit.
func NewPairsHandler(source PairsSource, maxLimit int) *PairsHandler {
	if maxLimit < 1 {
		maxLimit = 1000
	}
	return &PairsHandler{source: source, maxLimit: maxLimit}
}

// HandleGetPairs handles GET /pairs?limit=N&order=observed|expected|ratio&run=ID.
func (h *PairsHandler) HandleGetPairs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()

	limit := defaultPairsLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: limit %q", ErrBadRequest, s))
			return
		}
		limit = n
	}
	if limit > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", fmt.Errorf("%w: limit above %d", ErrBadRequest, h.maxLimit))
		return
	}
	order := q.Get("order")
	if order == "" {
		order = repository.OrderObserved
	}

	runID := q.Get("run")
	if runID == "" {
		latest, err := h.source.LatestRun(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err)
			return
		}
		if latest == "" {
			writeError(w, http.StatusNotFound, "not_found", ErrNoRuns)
			return
		}
		runID = latest
	}

	recs, err := h.source.TopPairs(r.Context(), runID, order, limit)
	switch {
	case errors.Is(err, repository.ErrUnknownOrder), errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	resp := PairsResponse{RunID: runID, Order: order, Pairs: make([]Pair, len(recs))}
	for i, rec := range recs {
		resp.Pairs[i] = Pair{
			A: rec.A, B: rec.B,
			ObservedCount: rec.ObservedCount, ObservedWinA: rec.ObservedWinA,
			CountA: rec.CountA, CountB: rec.CountB,
			ExpectedScore: rec.ExpectedScore,
			Ratio:         rec.Ratio(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
