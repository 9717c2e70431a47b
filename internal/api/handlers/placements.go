package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"ece-placement-service/internal/api/dto"
	"ece-placement-service/internal/domain"
	"ece-placement-service/internal/platform/obs"
	"ece-placement-service/internal/ports"
	"ece-placement-service/internal/services"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const maxCenters = 50

// PlacementHandler runs the optimizer over the stored tracts.
type PlacementHandler struct {
	Repo      ports.TractRepository
	Runs      ports.RunStore
	Optimizer *services.Optimizer

	// Runs read, optimize and write the whole table; one at a time.
	mu sync.Mutex
}

func (h *PlacementHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.PlacementRequest

	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return
	}

	centers := req.Centers
	if centers == 0 {
		centers = 1
	}
	if centers < 1 || centers > maxCenters {
		writeError(w, r, http.StatusBadRequest, "centers must be between 1 and 50")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	summary, err := h.place(r.Context(), centers, req.Optimized, req.Persist)
	if err != nil {
		zap.L().Error("place centers failed", append(obs.Fields(r.Context()), zap.Error(err))...)
		if r.Context().Err() != nil {
			writeError(w, r, http.StatusServiceUnavailable, "request cancelled")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, r, http.StatusOK, dto.NewRunSummaryResponse(summary, req.Persist))
}

func (h *PlacementHandler) place(ctx context.Context, centers int, optimized, persist bool) (domain.RunSummary, error) {
	tracts, err := h.Repo.ListTracts(ctx)
	if err != nil {
		return domain.RunSummary{}, eris.Wrap(err, "place centers")
	}
	table, err := domain.NewTractTable(tracts)
	if err != nil {
		return domain.RunSummary{}, eris.Wrap(err, "place centers")
	}

	final, summary, err := h.Optimizer.Run(ctx, table, centers, optimized)
	if err != nil {
		return summary, eris.Wrap(err, "place centers")
	}

	if !persist {
		return summary, nil
	}
	if h.Runs == nil {
		if err := h.Repo.SaveTracts(ctx, final); err != nil {
			return summary, eris.Wrap(err, "place centers: save tracts")
		}
		return summary, nil
	}
	if err := h.Runs.SavePlacementRun(ctx, final, summary); err != nil {
		return summary, eris.Wrap(err, "place centers: save run")
	}
	return summary, nil
}
