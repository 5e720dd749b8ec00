package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bus_tracker_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

type CreateRequestInput struct {
	Kind      models.RequestKind
	StudentID uuid.UUID
	ParentID  uuid.UUID
	Type      string
	Date      string
	Reason    string
}

// RequestService creates and reviews permission and absence requests. Both
// kinds go through the same guarded creation path.
type RequestService struct {
	store    RequestStore
	buses    BusDirectory
	notifier RequestNotifier
	now      func() time.Time
}

func NewRequestService(store RequestStore, buses BusDirectory, notifier RequestNotifier) *RequestService {
	return &RequestService{
		store:    store,
		buses:    buses,
		notifier: notifier,
		now:      time.Now,
	}
}

// CreateRequest inserts a PENDING request unless a non-rejected request for
// the same (student, kind, type, date) exists, in which case it returns
// ErrDuplicateRequest. The check and the insert run under an exclusive lock
// on the student, so of N concurrent identical calls exactly one succeeds.
func (s *RequestService) CreateRequest(ctx context.Context, in CreateRequestInput) (*models.Request, error) {
	if !in.Kind.Valid() {
		return nil, ErrInvalidRequestKind
	}
	if !in.Kind.AllowsType(in.Type) {
		return nil, ErrInvalidRequestType
	}
	date, err := time.Parse(dateLayout, in.Date)
	if err != nil {
		return nil, ErrInvalidDate
	}

	req := &models.Request{
		Kind:      in.Kind,
		StudentID: in.StudentID,
		ParentID:  in.ParentID,
		Type:      in.Type,
		Date:      date.Format(dateLayout),
		Reason:    in.Reason,
		Status:    models.RequestStatusPending,
	}

	err = s.store.WithStudentLock(ctx, in.StudentID, func(tx RequestTx, student *models.Student) error {
		if student.ParentID != in.ParentID {
			return ErrNotStudentParent
		}
		exists, err := tx.HasLiveRequest(req.Kind, req.StudentID, req.Type, req.Date)
		if err != nil {
			return fmt.Errorf("check existing requests: %w", err)
		}
		if exists {
			return ErrDuplicateRequest
		}
		if err := tx.InsertRequest(req); err != nil {
			return fmt.Errorf("insert request: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateRequest) {
			zerolog.Ctx(ctx).Info().
				Str("studentId", in.StudentID.String()).
				Str("kind", string(in.Kind)).
				Str("date", req.Date).
				Msg("Duplicate request rejected")
		}
		return nil, err
	}
	return req, nil
}

// ReviewRequest records a supervisor's decision on a PENDING request. Only
// the supervisor of the student's bus may decide.
func (s *RequestService) ReviewRequest(ctx context.Context, reviewerID, requestID uuid.UUID, decision models.RequestStatus) (*models.Request, error) {
	if decision != models.RequestStatusApproved && decision != models.RequestStatusRejected {
		return nil, ErrInvalidDecision
	}

	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	student, err := s.store.GetStudent(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	bus, err := s.buses.BusForSupervisor(ctx, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("lookup supervisor bus: %w", err)
	}
	if bus == nil || student.BusID == nil || *bus != *student.BusID {
		return nil, ErrNotStudentSupervisor
	}

	decidedAt := s.now().UTC()
	ok, err := s.store.DecideRequest(ctx, requestID, decision, reviewerID, decidedAt)
	if err != nil {
		return nil, fmt.Errorf("decide request: %w", err)
	}
	if !ok {
		return nil, ErrRequestAlreadyReviewed
	}

	req.Status = decision
	req.ReviewerID = &reviewerID
	req.DecidedAt = &decidedAt

	if s.notifier != nil {
		s.notifier.RequestUpdated(*req)
	}
	return req, nil
}

// ListStudentRequests returns a student's requests, newest first, to the
// student's parent, the supervisor of the student's bus, or an admin.
func (s *RequestService) ListStudentRequests(ctx context.Context, actorID uuid.UUID, role models.Role, studentID uuid.UUID) ([]models.Request, error) {
	student, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	switch role {
	case models.RoleAdmin:
	case models.RoleParent:
		if student.ParentID != actorID {
			return nil, ErrNotStudentParent
		}
	case models.RoleSupervisor:
		bus, err := s.buses.BusForSupervisor(ctx, actorID)
		if err != nil {
			return nil, fmt.Errorf("lookup supervisor bus: %w", err)
		}
		if bus == nil || student.BusID == nil || *bus != *student.BusID {
			return nil, ErrNotStudentSupervisor
		}
	default:
		return nil, ErrNotStudentParent
	}

	return s.store.ListStudentRequests(ctx, studentID)
}
