package services

import (
	"context"
	"errors"
	"time"

	"bus_tracker_go_backend/internal/models"

	"github.com/google/uuid"
)

var (
	ErrBusNotFound            = errors.New("bus not found")
	ErrBusNotAssigned         = errors.New("bus is not assigned to caller")
	ErrInvalidCoordinates     = errors.New("latitude or longitude out of range")
	ErrStudentNotFound        = errors.New("student not found")
	ErrNotStudentParent       = errors.New("caller is not the student's parent")
	ErrNotStudentSupervisor   = errors.New("caller does not supervise the student's bus")
	ErrInvalidRequestKind     = errors.New("invalid request kind")
	ErrInvalidRequestType     = errors.New("invalid request type for kind")
	ErrInvalidDate            = errors.New("date must be formatted YYYY-MM-DD")
	ErrInvalidDecision        = errors.New("decision must be APPROVED or REJECTED")
	ErrDuplicateRequest       = errors.New("a request for this student, type and date already exists")
	ErrRequestNotFound        = errors.New("request not found")
	ErrRequestAlreadyReviewed = errors.New("request has already been reviewed")
)

// LocationStore persists bus location samples.
type LocationStore interface {
	Save(ctx context.Context, busID uuid.UUID, lat, lng float64) (*models.BusLocation, error)
	// Latest returns nil and no error when the bus has never reported.
	Latest(ctx context.Context, busID uuid.UUID) (*models.BusLocation, error)
}

// BusDirectory answers ownership questions about buses. The lookups return
// nil and no error when the user has no bus.
type BusDirectory interface {
	BusForParent(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error)
	BusForSupervisor(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error)
	BusExists(ctx context.Context, busID uuid.UUID) (bool, error)
}

// LocationBroadcaster fans a saved sample out to live connections.
type LocationBroadcaster interface {
	Dispatch(sample models.BusLocation) int
}

// RequestStore is the persistence side of request creation and review.
type RequestStore interface {
	// WithStudentLock runs fn inside one transaction holding an exclusive
	// lock on the student row. The lock is released when fn returns.
	// Returns ErrStudentNotFound when the student does not exist.
	WithStudentLock(ctx context.Context, studentID uuid.UUID, fn func(tx RequestTx, student *models.Student) error) error
	GetStudent(ctx context.Context, studentID uuid.UUID) (*models.Student, error)
	GetRequest(ctx context.Context, requestID uuid.UUID) (*models.Request, error)
	ListStudentRequests(ctx context.Context, studentID uuid.UUID) ([]models.Request, error)
	// DecideRequest moves a PENDING request to status. It reports false when
	// the request was no longer PENDING.
	DecideRequest(ctx context.Context, requestID uuid.UUID, status models.RequestStatus, reviewerID uuid.UUID, at time.Time) (bool, error)
}

// RequestTx is the view of the store inside WithStudentLock.
type RequestTx interface {
	HasLiveRequest(kind models.RequestKind, studentID uuid.UUID, requestType, date string) (bool, error)
	InsertRequest(req *models.Request) error
}

// RequestNotifier is told about every reviewed request.
type RequestNotifier interface {
	RequestUpdated(req models.Request)
}
