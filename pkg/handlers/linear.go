package handlers

import (
	"net/http"

	"github.com/kacperjurak/goarraycore/pkg/config"
	"github.com/kacperjurak/goarraycore/pkg/models"
)

// LinearHandler serves linear array analyses
type LinearHandler struct {
	base
	analyzer Analyzer
}

// NewLinearHandler creates a new linear array handler
func NewLinearHandler(cfg *config.Config, analyzer Analyzer) *LinearHandler {
	return &LinearHandler{base: newBase(cfg), analyzer: analyzer}
}

// ServeHTTP implements the http.Handler interface
func (h *LinearHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.preflight(w, r) {
		return
	}

	var req models.LinearRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.analyzer.AnalyzeLinear(r.Context(), req)
	if err != nil {
		h.writeFailure(w, "linear", err)
		return
	}
	h.writeJSON(w, resp, http.StatusOK)
}
