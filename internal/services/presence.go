package services

import (
	"time"

	"bus_tracker_go_backend/internal/models"

	"github.com/google/uuid"
)

// OnlineThreshold is how recent the latest sample must be for a bus to
// count as online.
const OnlineThreshold = 60 * time.Second

// IsOnline derives presence from the latest sample. It is evaluated on every
// read and never stored.
func IsOnline(latest *models.BusLocation, now time.Time) bool {
	if latest == nil {
		return false
	}
	return now.Sub(latest.CreatedAt) < OnlineThreshold
}

type BusPresence struct {
	BusID    uuid.UUID  `json:"busId"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"lastSeen"`
}
