package models

import (
	"time"

	"github.com/google/uuid"
)

// BusLocation is one reported bus position. Rows are append-only; the
// current position of a bus is its most recent row.
type BusLocation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BusID     uuid.UUID `gorm:"type:uuid;index:idx_bus_time,priority:1;not null" json:"busId"`
	Latitude  float64   `gorm:"not null" json:"latitude"`
	Longitude float64   `gorm:"not null" json:"longitude"`
	CreatedAt time.Time `gorm:"index:idx_bus_time,priority:2;not null" json:"createdAt"`
}

func (BusLocation) TableName() string {
	return "bus_locations"
}
