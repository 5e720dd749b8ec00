package database

import (
	"fmt"
	"time"

	"bus_tracker_go_backend/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// InitDB opens the Postgres connection, retrying while the database comes
// up, and migrates the schema.
func InitDB(dsn string, attempts int, delay time.Duration) (*gorm.DB, error) {
	var lastErr error
	for i := 1; i <= attempts; i++ {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
		if err == nil {
			if err := Migrate(db); err != nil {
				return nil, err
			}
			return db, nil
		}

		lastErr = err
		log.Warn().Err(err).Int("attempt", i).Msg("Database not reachable, retrying")
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("db connect failed after %d attempts: %w", attempts, lastErr)
}

// Migrate creates or updates the schema. On Postgres it also installs the
// partial unique index that backs the one-live-request-per-slot rule.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(&models.User{}, &models.Bus{}, &models.Student{}, &models.BusLocation{}, &models.Request{})
	if err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}

	if db.Dialector.Name() == "postgres" {
		err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uniq_live_request_slot
			ON requests (student_id, kind, type, date)
			WHERE status <> 'REJECTED'`).Error
		if err != nil {
			return fmt.Errorf("failed to create request slot index: %w", err)
		}
	}
	return nil
}
