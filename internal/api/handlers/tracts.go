package handlers

import (
	"net/http"
	"strconv"

	"ece-placement-service/internal/api/dto"
	"ece-placement-service/internal/domain"
	"ece-placement-service/internal/platform/obs"
	"ece-placement-service/internal/ports"

	"go.uber.org/zap"
)

// TractHandler exposes read-only tract retrieval endpoints.
type TractHandler struct {
	Repo ports.TractRepository
}

// List returns tracts worst served first. limit=N truncates the list;
// zero or absent means all.
func (h *TractHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	tracts, err := h.Repo.ListTracts(r.Context())
	if err != nil {
		zap.L().Error("list tracts failed", append(obs.Fields(r.Context()), zap.Error(err))...)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	table, err := domain.NewTractTable(tracts)
	if err != nil {
		zap.L().Error("build tract table failed", append(obs.Fields(r.Context()), zap.Error(err))...)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}
	sorted := table.SortedByDistance().Tracts()
	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}

	res := dto.ListTractsResponse{
		Generation: table.Generation(),
		Total:      table.Len(),
		Tracts:     make([]dto.TractResponse, 0, len(sorted)),
	}
	for _, t := range sorted {
		res.Tracts = append(res.Tracts, dto.NewTractResponse(t))
	}

	writeJSON(w, r, http.StatusOK, res)
}
