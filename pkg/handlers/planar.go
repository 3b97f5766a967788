package handlers

import (
	"net/http"

	"github.com/kacperjurak/goarraycore/pkg/config"
	"github.com/kacperjurak/goarraycore/pkg/models"
)

// PlanarHandler serves planar array analyses
type PlanarHandler struct {
	base
	analyzer Analyzer
}

// NewPlanarHandler creates a new planar array handler
func NewPlanarHandler(cfg *config.Config, analyzer Analyzer) *PlanarHandler {
	return &PlanarHandler{base: newBase(cfg), analyzer: analyzer}
}

// ServeHTTP implements the http.Handler interface
func (h *PlanarHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.preflight(w, r) {
		return
	}

	var req models.PlanarRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.analyzer.AnalyzePlanar(r.Context(), req)
	if err != nil {
		h.writeFailure(w, "planar", err)
		return
	}
	h.writeJSON(w, resp, http.StatusOK)
}
