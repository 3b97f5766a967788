package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/kacperjurak/goarraycore"
	"github.com/kacperjurak/goarraycore/pkg/config"
	"github.com/kacperjurak/goarraycore/pkg/models"
)

// maxBodyBytes bounds request bodies; a 1000-element custom planar array
// is well under 100KB.
const maxBodyBytes = 4 << 20

// Analyzer runs the synchronous analyses behind the API routes.
type Analyzer interface {
	AnalyzeLinear(ctx context.Context, req models.LinearRequest) (*models.LinearResponse, error)
	AnalyzePlanar(ctx context.Context, req models.PlanarRequest) (*models.PlanarResponse, error)
	Envelope(ctx context.Context, req models.EnvelopeRequest) (*models.EnvelopeResponse, error)
}

// base carries what every handler needs for CORS and error replies.
type base struct {
	config  *config.Config
	origins map[string]bool
	anyOrig bool
}

func newBase(cfg *config.Config) base {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	b := base{config: cfg, origins: make(map[string]bool, len(cfg.CORSOrigins))}
	for _, o := range cfg.CORSOrigins {
		if o == "*" {
			b.anyOrig = true
		}
		b.origins[o] = true
	}
	return b
}

// setupCORS sets up CORS headers for allowed origins
func (b *base) setupCORS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Add("Vary", "Origin")

	origin := r.Header.Get("Origin")
	if origin == "" || !(b.anyOrig || b.origins[origin]) {
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Max-Age", "600")
}

// preflight handles CORS and method checks. It reports whether the handler
// should go on to serve the request.
func (b *base) preflight(w http.ResponseWriter, r *http.Request) bool {
	b.setupCORS(w, r)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return false
	}

	if r.Method != http.MethodPost {
		b.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// decode reads a JSON body into dst.
func (b *base) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		b.writeError(w, fmt.Sprintf("Invalid JSON format: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

// writeJSON writes a JSON response
func (b *base) writeJSON(w http.ResponseWriter, v interface{}, statusCode int) {
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("❌ Failed to encode response")
	}
}

// writeError writes an error response
func (b *base) writeError(w http.ResponseWriter, message string, statusCode int) {
	b.writeJSON(w, map[string]string{"error": message}, statusCode)
}

// writeFailure maps an analysis error to its HTTP status.
func (b *base) writeFailure(w http.ResponseWriter, route string, err error) {
	status := StatusFor(err)
	entry := log.WithField("route", route).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("❌ Analysis failed")
	} else if !b.config.Quiet {
		entry.Info("Rejected request")
	}
	b.writeError(w, err.Error(), status)
}

// StatusFor returns the HTTP status for an analysis error.
func StatusFor(err error) int {
	var cfgErr *goarraycore.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
