package webhook

import (
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kacperjurak/goarraycore/pkg/models"
)

// Payload builds the JSON body for one webhook item. Non-finite numbers are
// replaced so the body always encodes.
func Payload(item models.WebhookItem) models.WebhookResponse {
	params := item.Parameters

	gain := sanitizeFloat(params.Gain, 0)
	if gain != params.Gain {
		log.WithField("request_id", item.RequestID).Warnf("Gain sanitized from %v to %v", params.Gain, gain)
	}

	elements := make([]models.ElementReport, len(item.Elements))
	for i, e := range item.Elements {
		elements[i] = models.ElementReport{
			X:           sanitizeFloat(e.X, 0),
			Y:           sanitizeFloat(e.Y, 0),
			AmplitudeDB: sanitizeFloat(e.AmplitudeDB, models.FloorDB),
			PhaseDeg:    sanitizeFloat(e.PhaseDeg, 0),
		}
	}

	return models.WebhookResponse{
		ID:        item.RequestID,
		BatchID:   item.BatchID,
		Time:      time.Now().Format(time.RFC3339Nano),
		Kind:      item.Kind,
		Iteration: item.Iteration,
		Gain:      gain,
		PeakAngle: sanitizeFloat(params.PeakAngle, 0),
		SLL:       sanitizeFloat(params.SLL, 0),
		HPBW:      sanitizeFloat(params.HPBW, 0),
		Theta:     sanitizeSlice(item.Theta, 0),
		Pattern:   sanitizeSlice(item.Pattern, models.FloorDB),
		Elements:  elements,
		Error:     item.Error,
	}
}

// sanitizeFloat cleans float64 values for JSON compatibility
func sanitizeFloat(value, fallback float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fallback
	}
	return value
}

func sanitizeSlice(values []float64, fallback float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = sanitizeFloat(v, fallback)
	}
	return out
}
