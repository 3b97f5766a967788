package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	log "github.com/sirupsen/logrus"

	"github.com/kacperjurak/goarraycore/internal/utils"
	"github.com/kacperjurak/goarraycore/pkg/config"
	"github.com/kacperjurak/goarraycore/pkg/models"
	"github.com/kacperjurak/goarraycore/pkg/worker"
)

// BatchHandler handles batch array analysis requests
type BatchHandler struct {
	base
	workerPool *worker.Pool
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(cfg *config.Config, pool *worker.Pool) *BatchHandler {
	return &BatchHandler{
		base:       newBase(cfg),
		workerPool: pool,
	}
}

// ServeHTTP implements the http.Handler interface
func (h *BatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.preflight(w, r) {
		return
	}

	var batch models.ArrayBatch
	if !h.decode(w, r, &batch) {
		return
	}

	if len(batch.Items) == 0 {
		h.writeError(w, "No items provided in batch", http.StatusBadRequest)
		return
	}
	if batch.BatchID == "" {
		batch.BatchID = utils.GenerateID()
	}

	// Items are decoded up front so a malformed one rejects the whole batch.
	requests := make([]interface{}, len(batch.Items))
	for i, item := range batch.Items {
		req, err := DecodeItem(item)
		if err != nil {
			h.writeError(w, fmt.Sprintf("item %d: %v", i, err), http.StatusBadRequest)
			return
		}
		requests[i] = req
	}

	log.WithFields(log.Fields{
		"batch_id": batch.BatchID,
		"items":    len(batch.Items),
	}).Info("🔄 Batch processing started")

	go h.RunBatch(batch, requests)

	response := map[string]interface{}{
		"success":  true,
		"batch_id": batch.BatchID,
		"items":    len(batch.Items),
		"message":  "Batch processing started with worker pool",
	}
	h.writeJSON(w, response, http.StatusAccepted)
}

// DecodeItem converts the loosely typed params of a batch item into the
// request type named by its kind.
func DecodeItem(item models.BatchItem) (interface{}, error) {
	var target interface{}
	switch item.Kind {
	case models.KindLinear:
		target = &models.LinearRequest{}
	case models.KindPlanar:
		target = &models.PlanarRequest{}
	case models.KindEnvelope:
		target = &models.EnvelopeRequest{}
	default:
		return nil, fmt.Errorf("unknown kind %q", item.Kind)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           target,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(item.Params); err != nil {
		return nil, fmt.Errorf("invalid %s params: %w", item.Kind, err)
	}

	switch req := target.(type) {
	case *models.LinearRequest:
		return *req, nil
	case *models.PlanarRequest:
		return *req, nil
	case *models.EnvelopeRequest:
		return *req, nil
	}
	return nil, fmt.Errorf("unknown kind %q", item.Kind)
}

// RunBatch pushes every item through the worker pool, forwards each result
// to the webhook and records the batch timing. It returns the per-item
// timings in item order.
func (h *BatchHandler) RunBatch(batch models.ArrayBatch, requests []interface{}) []models.ItemTiming {
	batchStartTime := time.Now()
	timings := make([]models.ItemTiming, len(batch.Items))
	reply := make(chan models.WorkResult, len(batch.Items))

	submitted := 0
	for i, item := range batch.Items {
		job := models.WorkItem{
			ID:        i,
			RequestID: utils.GenerateID(),
			BatchID:   batch.BatchID,
			Iteration: item.Iteration,
			Kind:      item.Kind,
			Request:   requests[i],
			StartTime: time.Now(),
			Reply:     reply,
		}
		if !h.workerPool.SubmitJob(job) {
			log.WithField("batch_id", batch.BatchID).Warn("⚠️  Worker pool shut down, batch aborted")
			break
		}
		submitted++
	}

	got := make([]bool, submitted)
	received := 0
	record := func(result models.WorkResult) {
		h.processResult(result, timings)
		got[result.ID] = true
		received++
	}

wait:
	for received < submitted {
		select {
		case result := <-reply:
			record(result)
		case <-h.workerPool.Done():
			for drained := false; !drained; {
				select {
				case result := <-reply:
					record(result)
				default:
					drained = true
				}
			}
			log.WithFields(log.Fields{
				"batch_id": batch.BatchID,
				"missing":  submitted - received,
			}).Warn("⚠️  Worker pool shut down, batch results incomplete")
			break wait
		}
	}

	// Timings of items the pool never ran are dropped, keeping item order.
	done := timings[:0]
	for i, ok := range got {
		if ok {
			done = append(done, timings[i])
		}
	}
	timings = done

	totalBatchTime := time.Since(batchStartTime)
	if len(timings) > 0 && h.config.TimingFile != "" {
		h.saveTimingResults(batch.BatchID, totalBatchTime, timings, h.workerPool.Workers())
	}

	log.WithFields(log.Fields{
		"batch_id": batch.BatchID,
		"items":    len(timings),
		"duration": totalBatchTime,
	}).Info("🎉 Batch processing completed")
	return timings
}

// processResult records timing and queues the webhook for one result
func (h *BatchHandler) processResult(result models.WorkResult, timings []models.ItemTiming) {
	timings[result.ID] = models.ItemTiming{
		Iteration:      result.Iteration,
		Kind:           result.Kind,
		ProcessingTime: result.ProcessingTime,
		Gain:           result.Analysis.Parameters.Gain,
		Success:        result.Success,
	}

	h.workerPool.QueueWebhook(models.WebhookItem{
		RequestID:  utils.ItemID(result.RequestID, result.Iteration),
		BatchID:    result.BatchID,
		Kind:       result.Kind,
		Iteration:  result.Iteration,
		Parameters: result.Analysis.Parameters,
		Theta:      result.Analysis.Theta,
		Pattern:    result.Analysis.Pattern,
		Elements:   result.Analysis.Elements,
		Error:      result.Error,
	})

	if !h.config.Quiet {
		log.WithFields(log.Fields{
			"iteration": result.Iteration,
			"kind":      result.Kind,
			"success":   result.Success,
		}).Info("✅ Processed batch item")
	}
}

// saveTimingResults appends a CSV summary of the batch for performance analysis
func (h *BatchHandler) saveTimingResults(batchID string, totalTime time.Duration, timings []models.ItemTiming, concurrency int) {
	var writeHeader bool
	if _, err := os.Stat(h.config.TimingFile); os.IsNotExist(err) {
		writeHeader = true
	}

	file, err := os.OpenFile(h.config.TimingFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.WithError(err).Error("Error opening timing file")
		return
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if writeHeader {
		header := []string{
			"Timestamp",
			"BatchID",
			"TotalItems",
			"Concurrency",
			"TotalBatchTime_ms",
			"AvgItemTime_ms",
			"MinItemTime_ms",
			"MaxItemTime_ms",
			"SuccessRate",
			"AvgGain_dB",
			"ItemsPerSecond",
			"EfficiencyScore",
		}
		if err := writer.Write(header); err != nil {
			log.WithError(err).Error("Error writing timing header")
			return
		}
	}

	var totalItemTime time.Duration
	var minTime, maxTime time.Duration = time.Hour, 0
	var successful int
	var totalGain float64

	for _, timing := range timings {
		totalItemTime += timing.ProcessingTime
		if timing.ProcessingTime < minTime {
			minTime = timing.ProcessingTime
		}
		if timing.ProcessingTime > maxTime {
			maxTime = timing.ProcessingTime
		}
		if timing.Success {
			successful++
			totalGain += timing.Gain
		}
	}

	numItems := len(timings)
	avgItemTime := totalItemTime / time.Duration(numItems)
	successRate := float64(successful) / float64(numItems) * 100
	avgGain := 0.0
	if successful > 0 {
		avgGain = totalGain / float64(successful)
	}

	seconds := totalTime.Seconds()
	if seconds <= 0 {
		seconds = 1e-9
	}
	itemsPerSecond := float64(numItems) / seconds

	// 1.0 means the pool delivered a linear speedup over serial processing.
	efficiencyScore := totalItemTime.Seconds() / seconds / float64(concurrency)

	record := []string{
		time.Now().Format(time.RFC3339),
		batchID,
		fmt.Sprintf("%d", numItems),
		fmt.Sprintf("%d", concurrency),
		fmt.Sprintf("%.2f", float64(totalTime.Nanoseconds())/1000000.0),
		fmt.Sprintf("%.2f", float64(avgItemTime.Nanoseconds())/1000000.0),
		fmt.Sprintf("%.2f", float64(minTime.Nanoseconds())/1000000.0),
		fmt.Sprintf("%.2f", float64(maxTime.Nanoseconds())/1000000.0),
		fmt.Sprintf("%.1f", successRate),
		fmt.Sprintf("%.2f", avgGain),
		fmt.Sprintf("%.2f", itemsPerSecond),
		fmt.Sprintf("%.3f", efficiencyScore),
	}

	if err := writer.Write(record); err != nil {
		log.WithError(err).Error("Error writing timing record")
		return
	}

	log.Infof("📊 Timing saved: %d items, %d workers, %.2f ms total, %.1f%% success, %.3f efficiency",
		numItems, concurrency, float64(totalTime.Nanoseconds())/1000000.0, successRate, efficiencyScore)
}
