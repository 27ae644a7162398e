package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateRunID generates a selection-run ID with a timestamp prefix
func GenerateRunID() string {
	timestamp := time.Now().Format("20060102-150405")
	return fmt.Sprintf("sel-%s-%s", timestamp, uuid.NewString()[:8])
}

// GenerateID generates a unique opaque ID
func GenerateID() string {
	return uuid.NewString()
}
