package services

import (
	"context"
	"errors"
	"time"

	"bus_tracker_go_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DefaultLocationStore struct {
	db *gorm.DB
}

func NewLocationStore(db *gorm.DB) LocationStore {
	return &DefaultLocationStore{db: db}
}

func (s *DefaultLocationStore) Save(ctx context.Context, busID uuid.UUID, lat, lng float64) (*models.BusLocation, error) {
	sample := &models.BusLocation{
		BusID:     busID,
		Latitude:  lat,
		Longitude: lng,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(sample).Error; err != nil {
		return nil, err
	}
	return sample, nil
}

func (s *DefaultLocationStore) Latest(ctx context.Context, busID uuid.UUID) (*models.BusLocation, error) {
	var sample models.BusLocation
	err := s.db.WithContext(ctx).
		Where("bus_id = ?", busID).
		Order("created_at desc").
		Order("id desc").
		First(&sample).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sample, nil
}

type DefaultBusDirectory struct {
	db *gorm.DB
}

func NewBusDirectory(db *gorm.DB) BusDirectory {
	return &DefaultBusDirectory{db: db}
}

// BusForParent resolves the bus of the parent's first enrolled child that
// rides one.
func (d *DefaultBusDirectory) BusForParent(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	var student models.Student
	err := d.db.WithContext(ctx).
		Where("parent_id = ? AND bus_id IS NOT NULL", userID).
		Order("created_at asc").
		First(&student).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return student.BusID, nil
}

func (d *DefaultBusDirectory) BusForSupervisor(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	var bus models.Bus
	err := d.db.WithContext(ctx).Where("supervisor_id = ?", userID).First(&bus).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bus.ID, nil
}

func (d *DefaultBusDirectory) BusExists(ctx context.Context, busID uuid.UUID) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.Bus{}).Where("id = ?", busID).Count(&count).Error
	return count > 0, err
}
