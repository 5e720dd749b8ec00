package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bus_tracker_go_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DefaultRequestStore struct {
	db *gorm.DB
}

func NewRequestStore(db *gorm.DB) RequestStore {
	return &DefaultRequestStore{db: db}
}

// WithStudentLock locks the student row with SELECT ... FOR UPDATE for the
// lifetime of the transaction. Returning an error from fn rolls back.
func (s *DefaultRequestStore) WithStudentLock(ctx context.Context, studentID uuid.UUID, fn func(tx RequestTx, student *models.Student) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var student models.Student
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", studentID).
			First(&student).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStudentNotFound
		}
		if err != nil {
			return fmt.Errorf("lock student: %w", err)
		}
		return fn(&requestTx{tx: tx}, &student)
	})
}

func (s *DefaultRequestStore) GetStudent(ctx context.Context, studentID uuid.UUID) (*models.Student, error) {
	var student models.Student
	err := s.db.WithContext(ctx).Where("id = ?", studentID).First(&student).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrStudentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (s *DefaultRequestStore) GetRequest(ctx context.Context, requestID uuid.UUID) (*models.Request, error) {
	var req models.Request
	err := s.db.WithContext(ctx).Where("id = ?", requestID).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *DefaultRequestStore) ListStudentRequests(ctx context.Context, studentID uuid.UUID) ([]models.Request, error) {
	var reqs []models.Request
	err := s.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("date desc").
		Order("created_at desc").
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

func (s *DefaultRequestStore) DecideRequest(ctx context.Context, requestID uuid.UUID, status models.RequestStatus, reviewerID uuid.UUID, at time.Time) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.Request{}).
		Where("id = ? AND status = ?", requestID, models.RequestStatusPending).
		Updates(map[string]interface{}{
			"status":      status,
			"reviewer_id": reviewerID,
			"decided_at":  at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

type requestTx struct {
	tx *gorm.DB
}

func (t *requestTx) HasLiveRequest(kind models.RequestKind, studentID uuid.UUID, requestType, date string) (bool, error) {
	var count int64
	err := t.tx.Model(&models.Request{}).
		Where("student_id = ? AND kind = ? AND type = ? AND date = ? AND status <> ?",
			studentID, kind, requestType, date, models.RequestStatusRejected).
		Count(&count).Error
	return count > 0, err
}

func (t *requestTx) InsertRequest(req *models.Request) error {
	err := t.tx.Create(req).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateRequest
	}
	return err
}
