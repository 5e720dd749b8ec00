package services

import (
	"context"
	"sync"
	"time"

	"bus_tracker_go_backend/internal/models"
	"bus_tracker_go_backend/internal/utils/keylock"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockBusDirectory struct {
	mock.Mock
}

func (m *MockBusDirectory) BusForParent(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*uuid.UUID), args.Error(1)
}

func (m *MockBusDirectory) BusForSupervisor(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*uuid.UUID), args.Error(1)
}

func (m *MockBusDirectory) BusExists(ctx context.Context, busID uuid.UUID) (bool, error) {
	args := m.Called(ctx, busID)
	return args.Bool(0), args.Error(1)
}

type MockLocationStore struct {
	mock.Mock
}

func (m *MockLocationStore) Save(ctx context.Context, busID uuid.UUID, lat, lng float64) (*models.BusLocation, error) {
	args := m.Called(ctx, busID, lat, lng)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BusLocation), args.Error(1)
}

func (m *MockLocationStore) Latest(ctx context.Context, busID uuid.UUID) (*models.BusLocation, error) {
	args := m.Called(ctx, busID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BusLocation), args.Error(1)
}

type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Dispatch(sample models.BusLocation) int {
	args := m.Called(sample)
	return args.Int(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) RequestUpdated(req models.Request) {
	m.Called(req)
}

// memRequestStore keeps requests in memory and serializes WithStudentLock
// per student, the way the database row lock does.
type memRequestStore struct {
	locks *keylock.KeyLock

	mu        sync.Mutex
	students  map[uuid.UUID]models.Student
	requests  []models.Request
	insertErr error
	// widens the window between the read and the write
	checkDelay time.Duration
}

func newMemRequestStore(students ...models.Student) *memRequestStore {
	s := &memRequestStore{
		locks:    keylock.New(),
		students: make(map[uuid.UUID]models.Student),
	}
	for _, st := range students {
		s.students[st.ID] = st
	}
	return s
}

func (s *memRequestStore) WithStudentLock(ctx context.Context, studentID uuid.UUID, fn func(tx RequestTx, student *models.Student) error) error {
	unlock := s.locks.Lock(studentID.String())
	defer unlock()

	s.mu.Lock()
	student, ok := s.students[studentID]
	s.mu.Unlock()
	if !ok {
		return ErrStudentNotFound
	}

	tx := &memRequestTx{store: s}
	if err := fn(tx, &student); err != nil {
		return err
	}
	s.mu.Lock()
	s.requests = append(s.requests, tx.pending...)
	s.mu.Unlock()
	return nil
}

func (s *memRequestStore) GetStudent(ctx context.Context, studentID uuid.UUID) (*models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	student, ok := s.students[studentID]
	if !ok {
		return nil, ErrStudentNotFound
	}
	return &student, nil
}

func (s *memRequestStore) GetRequest(ctx context.Context, requestID uuid.UUID) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if r.ID == requestID {
			r := r
			return &r, nil
		}
	}
	return nil, ErrRequestNotFound
}

func (s *memRequestStore) ListStudentRequests(ctx context.Context, studentID uuid.UUID) ([]models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Request
	for _, r := range s.requests {
		if r.StudentID == studentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memRequestStore) DecideRequest(ctx context.Context, requestID uuid.UUID, status models.RequestStatus, reviewerID uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.requests {
		if s.requests[i].ID == requestID && s.requests[i].Status == models.RequestStatusPending {
			s.requests[i].Status = status
			s.requests[i].ReviewerID = &reviewerID
			s.requests[i].DecidedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (s *memRequestStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type memRequestTx struct {
	store   *memRequestStore
	pending []models.Request
}

func (t *memRequestTx) HasLiveRequest(kind models.RequestKind, studentID uuid.UUID, requestType, date string) (bool, error) {
	t.store.mu.Lock()
	found := false
	for _, r := range t.store.requests {
		if r.StudentID == studentID && r.Kind == kind && r.Type == requestType && r.Date == date && r.Status != models.RequestStatusRejected {
			found = true
			break
		}
	}
	delay := t.store.checkDelay
	t.store.mu.Unlock()

	if !found && delay > 0 {
		time.Sleep(delay)
	}
	return found, nil
}

func (t *memRequestTx) InsertRequest(req *models.Request) error {
	if t.store.insertErr != nil {
		return t.store.insertErr
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	t.pending = append(t.pending, *req)
	return nil
}
