package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateID generates a unique ID for requests
func GenerateID() string {
	return uuid.NewString()
}

// ItemID names one item of a batch.
func ItemID(requestID string, iteration int) string {
	return fmt.Sprintf("%s_iter_%03d", requestID, iteration)
}
