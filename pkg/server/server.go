package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kacperjurak/goarraycore/internal/processing"
	"github.com/kacperjurak/goarraycore/pkg/cache"
	"github.com/kacperjurak/goarraycore/pkg/config"
	"github.com/kacperjurak/goarraycore/pkg/handlers"
	"github.com/kacperjurak/goarraycore/pkg/profiling"
	"github.com/kacperjurak/goarraycore/pkg/webhook"
	"github.com/kacperjurak/goarraycore/pkg/worker"
)

// Server represents the HTTP server with all dependencies
type Server struct {
	config     *config.Config
	processor  *processing.ArrayProcessor
	workerPool *worker.Pool
	httpServer *http.Server
	profiler   *profiling.Profiler
	middleware *profiling.Middleware
	limiter    *ipLimiter
}

// Options holds configuration for creating a new server
type Options struct {
	Config *config.Config
	// Sender overrides the webhook client built from Config.WebhookURL.
	Sender worker.Sender
}

// New creates a new server instance
func New(opts Options) *Server {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	cfg := opts.Config

	processor := processing.NewArrayProcessor(cfg, cache.New(cfg.CacheSize, cfg.CacheTTL))

	sender := opts.Sender
	if sender == nil && cfg.WebhookURL != "" {
		sender = webhook.NewClient(cfg.WebhookURL, cfg)
	}

	workerPool := worker.New(worker.Options{
		Workers:   cfg.WorkerCount,
		Processor: worker.ProcessorFunc(processor.ProcessorFunc()),
		Sender:    sender,
		Timeout:   cfg.RequestTimeout,
		Profile:   cfg.EnableProfiling,
	})

	server := &Server{
		config:     cfg,
		processor:  processor,
		workerPool: workerPool,
		profiler:   profiling.New(cfg),
		middleware: profiling.NewMiddleware(cfg.EnableProfiling),
		limiter:    newIPLimiter(cfg.RateLimit, cfg.RateBurst),
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures HTTP routes and handlers
func (s *Server) setupRoutes() {
	mux := http.NewServeMux()

	linearHandler := handlers.NewLinearHandler(s.config, s.processor)
	planarHandler := handlers.NewPlanarHandler(s.config, s.processor)
	envelopeHandler := handlers.NewEnvelopeHandler(s.config, s.processor)
	batchHandler := handlers.NewBatchHandler(s.config, s.workerPool)

	mux.Handle("/api/linear-array/analyze", s.api("linear", linearHandler))
	mux.Handle("/api/planar-array/analyze", s.api("planar", planarHandler))
	mux.Handle("/api/linear-array/envelope", s.api("envelope", envelopeHandler))
	mux.Handle("/api/batch", s.api("batch", batchHandler))
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/debug/gc", s.gcHandler)
	mux.HandleFunc("/debug/memory", s.memoryHandler)

	s.httpServer = &http.Server{
		Addr:              ":" + s.config.Port,
		Handler:           securityHeaders(s.limiter.middleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.config.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// api wraps an API handler with the request deadline and profiling.
func (s *Server) api(name string, h http.Handler) http.Handler {
	timed := http.TimeoutHandler(h, s.config.RequestTimeout, `{"error":"request timed out"}`)
	return s.middleware.ProfiledHandler(name, timed)
}

// Handler returns the complete middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// securityHeaders sets the response headers every route carries.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("❌ Failed to encode response")
	}
}

// healthHandler provides a simple health check endpoint
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"workers":   s.workerPool.Workers(),
		"cache":     s.processor.Cache().Stats(),
	})
}

// gcHandler triggers garbage collection and returns stats
func (s *Server) gcHandler(w http.ResponseWriter, r *http.Request) {
	stats := profiling.ForceGC()
	writeJSON(w, map[string]interface{}{
		"gc_runs":         stats.NumGC,
		"pause_total_ms":  float64(stats.PauseTotal.Nanoseconds()) / 1000000.0,
		"pause_recent_us": float64(stats.PauseRecent.Nanoseconds()) / 1000.0,
		"cpu_percent":     stats.GCCPUPercent,
		"last_gc":         stats.LastGC.Format(time.RFC3339),
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}

// memoryHandler provides current memory statistics
func (s *Server) memoryHandler(w http.ResponseWriter, r *http.Request) {
	profiling.LogGCStats()
	writeJSON(w, profiling.ReadRuntimeInfo())
}

// Start starts the HTTP server. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Start() error {
	if err := s.profiler.Start(); err != nil {
		log.WithError(err).Error("❌ Failed to start profiler")
	}

	port := s.config.Port
	log.Infof("🚀 Starting HTTP server on port %s", port)
	log.Info("📡 Endpoints available:")
	log.Infof("  - Linear:   http://localhost:%s/api/linear-array/analyze", port)
	log.Infof("  - Planar:   http://localhost:%s/api/planar-array/analyze", port)
	log.Infof("  - Envelope: http://localhost:%s/api/linear-array/envelope", port)
	log.Infof("  - Batch:    http://localhost:%s/api/batch", port)
	log.Infof("  - Health:   http://localhost:%s/health", port)
	log.Infof("  - GC:       http://localhost:%s/debug/gc", port)
	log.Infof("  - Memory:   http://localhost:%s/debug/memory", port)

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server, the profiler and the worker pool
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("🛑 Shutting down server...")

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
	}

	if err := s.profiler.Stop(ctx); err != nil {
		log.WithError(err).Warn("⚠️ Profiler shutdown error")
		errs = append(errs, err)
	}

	s.workerPool.Shutdown()

	log.Info("✅ Server shutdown complete")
	return errors.Join(errs...)
}
