package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Bus is the unit of location subscription. SupervisorID is the supervisor
// currently assigned to ride it.
type Bus struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	PlateNumber  string     `gorm:"unique;not null"`
	SupervisorID *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (b *Bus) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
