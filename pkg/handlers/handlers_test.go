package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kacperjurak/goarraycore"
	"github.com/kacperjurak/goarraycore/internal/processing"
	"github.com/kacperjurak/goarraycore/pkg/config"
	"github.com/kacperjurak/goarraycore/pkg/models"
	"github.com/kacperjurak/goarraycore/pkg/worker"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Plots = false
	cfg.Quiet = true
	return cfg
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type stubAnalyzer struct {
	err error
}

func (s stubAnalyzer) AnalyzeLinear(ctx context.Context, req models.LinearRequest) (*models.LinearResponse, error) {
	return &models.LinearResponse{Gain: 1}, s.err
}

func (s stubAnalyzer) AnalyzePlanar(ctx context.Context, req models.PlanarRequest) (*models.PlanarResponse, error) {
	return &models.PlanarResponse{Gain: 2}, s.err
}

func (s stubAnalyzer) Envelope(ctx context.Context, req models.EnvelopeRequest) (*models.EnvelopeResponse, error) {
	return &models.EnvelopeResponse{YMax: 3}, s.err
}

func TestLinearHandler(t *testing.T) {
	cfg := testConfig()
	h := NewLinearHandler(cfg, processing.NewArrayProcessor(cfg, nil))

	rec := post(h, `{"num_elem": 8, "element_spacing": 0.5, "element_pattern": false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	var resp models.LinearResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.PeakAngle != 0 || resp.HPBW != 12 || len(resp.Excitation) != 8 {
		t.Errorf("response = peak %v, hpbw %v, %d elements", resp.PeakAngle, resp.HPBW, len(resp.Excitation))
	}
	if resp.Gain < 9 || resp.Gain > 9.1 {
		t.Errorf("gain = %v, want ≈ 9.03", resp.Gain)
	}
}

func TestPlanarHandler(t *testing.T) {
	cfg := testConfig()
	h := NewPlanarHandler(cfg, processing.NewArrayProcessor(cfg, nil))

	rec := post(h, `{"array_type": "rect", "element_pattern": false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp models.PlanarResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Gain != 19.7 || resp.HPBW != 12 || len(resp.ManifoldX) != 64 {
		t.Errorf("response = gain %v, hpbw %v, %d elements", resp.Gain, resp.HPBW, len(resp.ManifoldX))
	}

	rec = post(h, `{"array_type": "hex"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown array type status = %d, want 400", rec.Code)
	}
}

func TestEnvelopeHandler(t *testing.T) {
	cfg := testConfig()
	h := NewEnvelopeHandler(cfg, processing.NewArrayProcessor(cfg, nil))

	rec := post(h, `{"num_elem": 8, "element_spacing": 0.5, "scan_from": -30, "scan_to": 30, "scan_step": 10}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp models.EnvelopeResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.ScanAngles) != 7 || len(resp.Envelope) != len(resp.Theta) {
		t.Errorf("response = %d scans, %d/%d samples", len(resp.ScanAngles), len(resp.Envelope), len(resp.Theta))
	}
}

func TestHandlerRequests(t *testing.T) {
	h := NewLinearHandler(testConfig(), stubAnalyzer{})

	tests := []struct {
		name   string
		method string
		body   string
		origin string
		want   int
		cors   string
	}{
		{"preflight", http.MethodOptions, "", "http://localhost:3000", http.StatusOK, "http://localhost:3000"},
		{"wrong method", http.MethodGet, "", "", http.StatusMethodNotAllowed, ""},
		{"bad json", http.MethodPost, "{", "", http.StatusBadRequest, ""},
		{"foreign origin", http.MethodPost, "{}", "http://evil.example", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", strings.NewReader(tt.body))
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.cors {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.cors)
			}
			if rec.Header().Get("Vary") != "Origin" {
				t.Errorf("Vary = %q, want Origin", rec.Header().Get("Vary"))
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"configuration", &goarraycore.ConfigurationError{Field: "num_elem", Reason: "must be positive"}, http.StatusBadRequest},
		{"wrapped configuration", errors.Join(errors.New("x"), &goarraycore.ConfigurationError{Field: "f"}), http.StatusBadRequest},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"canceled", context.Canceled, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(tt.err); got != tt.want {
				t.Errorf("StatusFor() = %d, want %d", got, tt.want)
			}
		})
	}

	h := NewPlanarHandler(testConfig(), stubAnalyzer{err: errors.New("boom")})
	if rec := post(h, "{}"); rec.Code != http.StatusInternalServerError {
		t.Errorf("internal failure status = %d, want 500", rec.Code)
	}
}

func TestDecodeItem(t *testing.T) {
	tests := []struct {
		name    string
		item    models.BatchItem
		wantErr bool
	}{
		{"linear", models.BatchItem{Kind: models.KindLinear, Params: map[string]interface{}{
			"num_elem": 8.0, "element_spacing": []interface{}{0.5, 0.5}, "SLL": "30",
		}}, false},
		{"planar", models.BatchItem{Kind: models.KindPlanar, Params: map[string]interface{}{
			"array_type": "circ", "num_elem": []interface{}{8.0}, "radius": []interface{}{0.5}, "cut_angle": 45.0,
		}}, false},
		{"envelope", models.BatchItem{Kind: models.KindEnvelope, Params: map[string]interface{}{
			"num_elem": 4, "element_spacing": 0.5, "scan_from": -10, "scan_to": 10, "scan_step": 5,
		}}, false},
		{"unknown kind", models.BatchItem{Kind: "conformal"}, true},
		{"unknown key", models.BatchItem{Kind: models.KindLinear, Params: map[string]interface{}{"num_elements": 8}}, true},
		{"bad type", models.BatchItem{Kind: models.KindPlanar, Params: map[string]interface{}{"num_elem": "many"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeItem(tt.item)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeItem() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			switch req := got.(type) {
			case models.LinearRequest:
				if req.NumElem != 8 || req.SLL != 30 {
					t.Errorf("linear = %+v", req)
				}
			case models.PlanarRequest:
				if req.ArrayType != "circ" || req.CutAngle == nil || *req.CutAngle != 45 {
					t.Errorf("planar = %+v", req)
				}
			case models.EnvelopeRequest:
				if req.NumElem != 4 || req.ScanStep != 5 {
					t.Errorf("envelope = %+v", req)
				}
			default:
				t.Errorf("DecodeItem() type = %T", got)
			}
		})
	}
}

type recordingSender struct {
	mu    sync.Mutex
	items []models.WebhookItem
	got   chan struct{}
}

func (s *recordingSender) Send(item models.WebhookItem) error {
	s.mu.Lock()
	s.items = append(s.items, item)
	s.mu.Unlock()
	s.got <- struct{}{}
	return nil
}

func newBatchHandler(t *testing.T, sender *recordingSender) *BatchHandler {
	t.Helper()
	cfg := testConfig()
	cfg.TimingFile = filepath.Join(t.TempDir(), "timing.csv")
	proc := processing.NewArrayProcessor(cfg, nil)
	pool := worker.New(worker.Options{Workers: 2, Processor: proc.Process, Sender: sender})
	t.Cleanup(pool.Shutdown)

	return NewBatchHandler(cfg, pool)
}

func TestBatchHandler(t *testing.T) {
	sender := &recordingSender{got: make(chan struct{}, 8)}
	h := newBatchHandler(t, sender)

	body := `{"batch_id": "b1", "items": [
		{"kind": "linear", "iteration": 0, "params": {"num_elem": 8, "element_spacing": 0.5}},
		{"kind": "planar", "iteration": 1, "params": {"array_type": "rect", "num_elem": [4, 4]}}
	]}`
	rec := post(h, body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	for i := 0; i < 2; i++ {
		select {
		case <-sender.got:
		case <-time.After(5 * time.Second):
			t.Fatal("webhook not delivered")
		}
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	for _, item := range sender.items {
		if item.BatchID != "b1" || item.Error != "" {
			t.Errorf("webhook item = %+v", item)
		}
		if !strings.HasSuffix(item.RequestID, "_iter_000") && !strings.HasSuffix(item.RequestID, "_iter_001") {
			t.Errorf("webhook id = %q", item.RequestID)
		}
		if len(item.Pattern) == 0 || len(item.Elements) == 0 {
			t.Errorf("webhook item for %s missing pattern or elements", item.Kind)
		}
	}
}

func TestBatchHandlerRejects(t *testing.T) {
	h := newBatchHandler(t, &recordingSender{got: make(chan struct{}, 1)})

	tests := []struct {
		name string
		body string
	}{
		{"empty", `{"items": []}`},
		{"bad item", `{"items": [{"kind": "linear", "params": {"bogus": 1}}]}`},
		{"bad kind", `{"items": [{"kind": "spiral", "params": {}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := post(h, tt.body); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestRunBatchTiming(t *testing.T) {
	sender := &recordingSender{got: make(chan struct{}, 8)}
	h := newBatchHandler(t, sender)

	batch := models.ArrayBatch{
		BatchID: "timing",
		Items: []models.BatchItem{
			{Kind: models.KindLinear, Iteration: 5},
			{Kind: models.KindLinear, Iteration: 6},
		},
	}
	requests := []interface{}{
		models.LinearRequest{NumElem: 4, ElementSpacing: 0.5},
		models.LinearRequest{NumElem: 0, ElementSpacing: 0.5},
	}

	timings := h.RunBatch(batch, requests)
	if len(timings) != 2 {
		t.Fatalf("RunBatch() returned %d timings, want 2", len(timings))
	}
	if !timings[0].Success || timings[0].Iteration != 5 || timings[0].Gain == 0 {
		t.Errorf("timings[0] = %+v", timings[0])
	}
	if timings[1].Success || timings[1].Iteration != 6 {
		t.Errorf("timings[1] = %+v, want a failure", timings[1])
	}

	f, err := os.Open(h.config.TimingFile)
	if err != nil {
		t.Fatalf("timing file: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read timing csv: %v", err)
	}
	if len(rows) != 2 || rows[0][0] != "Timestamp" || rows[1][1] != "timing" || rows[1][8] != "50.0" {
		t.Errorf("timing rows = %v", rows)
	}
}

func TestRunBatchPoolShutdown(t *testing.T) {
	started := make(chan struct{}, 3)
	release := make(chan struct{})
	blocking := func(ctx context.Context, kind string, req interface{}) (models.Analysis, error) {
		started <- struct{}{}
		<-release
		return models.Analysis{}, nil
	}
	pool := worker.New(worker.Options{Workers: 1, Processor: blocking})
	cfg := testConfig()
	cfg.TimingFile = ""
	h := NewBatchHandler(cfg, pool)

	batch := models.ArrayBatch{BatchID: "stopped", Items: make([]models.BatchItem, 3)}
	for i := range batch.Items {
		batch.Items[i] = models.BatchItem{Kind: models.KindLinear, Iteration: i}
	}
	requests := make([]interface{}, len(batch.Items))

	out := make(chan []models.ItemTiming, 1)
	go func() { out <- h.RunBatch(batch, requests) }()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first job never started")
	}
	stopped := make(chan struct{})
	go func() {
		pool.Shutdown()
		close(stopped)
	}()

	select {
	case timings := <-out:
		if len(timings) != 0 {
			t.Errorf("RunBatch() returned %d timings, want none", len(timings))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunBatch() did not return after the pool shut down")
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown() did not complete")
	}
}
