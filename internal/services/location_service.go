package services

import (
	"context"
	"fmt"
	"time"

	"bus_tracker_go_backend/internal/models"
	"bus_tracker_go_backend/internal/utils/keylock"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type LocationService struct {
	store       LocationStore
	buses       BusDirectory
	broadcaster LocationBroadcaster
	busLocks    *keylock.KeyLock
	now         func() time.Time
}

func NewLocationService(store LocationStore, buses BusDirectory, broadcaster LocationBroadcaster) *LocationService {
	return &LocationService{
		store:       store,
		buses:       buses,
		broadcaster: broadcaster,
		busLocks:    keylock.New(),
		now:         time.Now,
	}
}

// SaveLocation persists a new sample for busID and broadcasts it before
// returning. Saves for the same bus are serialized so that subscribers see
// samples in the order they were stored.
func (s *LocationService) SaveLocation(ctx context.Context, actorID uuid.UUID, role models.Role, busID uuid.UUID, lat, lng float64) (*models.BusLocation, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, ErrInvalidCoordinates
	}
	if err := s.authorizeBus(ctx, actorID, role, busID); err != nil {
		return nil, err
	}

	unlock := s.busLocks.Lock(busID.String())
	defer unlock()

	sample, err := s.store.Save(ctx, busID, lat, lng)
	if err != nil {
		return nil, fmt.Errorf("save location: %w", err)
	}

	delivered := s.broadcaster.Dispatch(*sample)
	zerolog.Ctx(ctx).Debug().
		Str("busId", busID.String()).
		Int("delivered", delivered).
		Msg("Location dispatched")

	return sample, nil
}

// LatestLocation returns the most recent sample, or nil if the bus never
// reported.
func (s *LocationService) LatestLocation(ctx context.Context, actorID uuid.UUID, role models.Role, busID uuid.UUID) (*models.BusLocation, error) {
	if err := s.authorizeBus(ctx, actorID, role, busID); err != nil {
		return nil, err
	}
	latest, err := s.store.Latest(ctx, busID)
	if err != nil {
		return nil, fmt.Errorf("latest location: %w", err)
	}
	return latest, nil
}

func (s *LocationService) BusStatus(ctx context.Context, actorID uuid.UUID, role models.Role, busID uuid.UUID) (*BusPresence, error) {
	latest, err := s.LatestLocation(ctx, actorID, role, busID)
	if err != nil {
		return nil, err
	}
	presence := &BusPresence{BusID: busID, Online: IsOnline(latest, s.now())}
	if latest != nil {
		lastSeen := latest.CreatedAt
		presence.LastSeen = &lastSeen
	}
	return presence, nil
}

// authorizeBus applies the same ownership rules as socket subscriptions:
// admins see every bus, parents and supervisors only their own.
func (s *LocationService) authorizeBus(ctx context.Context, actorID uuid.UUID, role models.Role, busID uuid.UUID) error {
	var (
		owned *uuid.UUID
		err   error
	)
	switch role {
	case models.RoleAdmin:
		exists, err := s.buses.BusExists(ctx, busID)
		if err != nil {
			return fmt.Errorf("lookup bus: %w", err)
		}
		if !exists {
			return ErrBusNotFound
		}
		return nil
	case models.RoleSupervisor:
		owned, err = s.buses.BusForSupervisor(ctx, actorID)
	case models.RoleParent:
		owned, err = s.buses.BusForParent(ctx, actorID)
	default:
		return ErrBusNotAssigned
	}
	if err != nil {
		return fmt.Errorf("lookup bus: %w", err)
	}
	if owned == nil || *owned != busID {
		return ErrBusNotAssigned
	}
	return nil
}
