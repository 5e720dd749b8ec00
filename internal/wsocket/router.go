package wsocket

import (
	"context"
	"errors"
	"fmt"

	"bus_tracker_go_backend/internal/models"
	"bus_tracker_go_backend/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	ErrSubscriptionDenied = errors.New("subscription denied")
	ErrUnknownRole        = errors.New("unknown role")
	ErrNotRegistered      = errors.New("connection is not registered")
)

// Router validates SUBSCRIBE messages and records accepted subscriptions.
// Admins see every bus. Parents and supervisors may only follow the bus
// they are tied to; any mismatch closes the connection.
type Router struct {
	registry *Registry
	buses    services.BusDirectory
}

func NewRouter(registry *Registry, buses services.BusDirectory) *Router {
	return &Router{registry: registry, buses: buses}
}

// HandleSubscribe applies a subscribe request. Whenever it returns an error
// the connection has already been closed.
func (r *Router) HandleSubscribe(ctx context.Context, c *Client, requestedBusID *string) error {
	log := zerolog.Ctx(ctx)

	var (
		owned *uuid.UUID
		err   error
	)
	switch c.Role {
	case models.RoleAdmin:
		return r.apply(c, "", true)
	case models.RoleParent:
		owned, err = r.buses.BusForParent(ctx, c.UserID)
	case models.RoleSupervisor:
		owned, err = r.buses.BusForSupervisor(ctx, c.UserID)
	default:
		c.Close(websocket.ClosePolicyViolation, "unknown role")
		return ErrUnknownRole
	}
	if err != nil {
		log.Error().Err(err).Str("userId", c.UserID.String()).Msg("Bus lookup failed")
		c.Close(websocket.CloseInternalServerErr, "bus lookup failed")
		return fmt.Errorf("bus lookup: %w", err)
	}

	if owned == nil {
		log.Info().Str("userId", c.UserID.String()).Str("role", string(c.Role)).Msg("Subscribe without bus association")
		c.Close(websocket.ClosePolicyViolation, "no bus associated with this account")
		return ErrSubscriptionDenied
	}
	if requestedBusID == nil {
		c.Close(websocket.ClosePolicyViolation, "busId is required")
		return ErrSubscriptionDenied
	}
	requested, err := uuid.Parse(*requestedBusID)
	if err != nil || requested != *owned {
		log.Warn().
			Str("userId", c.UserID.String()).
			Str("role", string(c.Role)).
			Str("requestedBusId", *requestedBusID).
			Msg("Subscribe to foreign bus refused")
		c.Close(websocket.ClosePolicyViolation, "not authorized for this bus")
		return ErrSubscriptionDenied
	}

	return r.apply(c, owned.String(), false)
}

func (r *Router) apply(c *Client, busID string, adminAll bool) error {
	if !r.registry.SetSubscription(c, busID, adminAll) {
		return ErrNotRegistered
	}
	return nil
}
