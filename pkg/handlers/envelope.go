package handlers

import (
	"net/http"

	"github.com/kacperjurak/goarraycore/pkg/config"
	"github.com/kacperjurak/goarraycore/pkg/models"
)

// EnvelopeHandler serves linear scan envelopes
type EnvelopeHandler struct {
	base
	analyzer Analyzer
}

// NewEnvelopeHandler creates a new envelope handler
func NewEnvelopeHandler(cfg *config.Config, analyzer Analyzer) *EnvelopeHandler {
	return &EnvelopeHandler{base: newBase(cfg), analyzer: analyzer}
}

// ServeHTTP implements the http.Handler interface
func (h *EnvelopeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.preflight(w, r) {
		return
	}

	var req models.EnvelopeRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.analyzer.Envelope(r.Context(), req)
	if err != nil {
		h.writeFailure(w, "envelope", err)
		return
	}
	h.writeJSON(w, resp, http.StatusOK)
}
