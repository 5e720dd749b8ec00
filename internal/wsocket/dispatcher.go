package wsocket

import (
	"bus_tracker_go_backend/internal/models"
	"bus_tracker_go_backend/internal/utils/keylock"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Dispatcher fans saved location samples out to entitled connections.
type Dispatcher struct {
	registry *Registry
	busLocks *keylock.KeyLock
}

func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry, busLocks: keylock.New()}
}

// Dispatch delivers sample to every connection that is admin-all or
// subscribed to the sample's bus and returns how many accepted it. Delivery
// is at most once and never blocks: a connection whose queue is full is
// closed and dropped. Dispatches for one bus are serialized so subscribers
// see that bus's samples in submission order.
func (d *Dispatcher) Dispatch(sample models.BusLocation) int {
	msg, err := encodeLocationUpdate(sample)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode location update")
		return 0
	}
	busID := sample.BusID.String()

	unlock := d.busLocks.Lock(busID)
	defer unlock()

	delivered := 0
	for _, entry := range d.registry.Snapshot() {
		if !entry.AdminAll && entry.BusID != busID {
			continue
		}
		switch err := entry.Client.Enqueue(msg); err {
		case nil:
			delivered++
		case ErrSendQueueFull:
			log.Warn().
				Str("connId", entry.Client.ID.String()).
				Str("userId", entry.UserID.String()).
				Msg("Dropping slow connection")
			entry.Client.Close(websocket.CloseTryAgainLater, "too slow")
			d.registry.Unregister(entry.Client)
		}
	}
	return delivered
}
