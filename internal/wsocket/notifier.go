package wsocket

import (
	"encoding/json"

	"bus_tracker_go_backend/internal/models"
	"bus_tracker_go_backend/internal/utils/broker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func RequestTopic(parentID uuid.UUID) string {
	return "request_update_" + parentID.String()
}

// RequestNotifier publishes reviewed requests to the submitting parent's
// broker topic, where the parent's open sockets pick them up.
type RequestNotifier struct {
	broker *broker.Broker
}

func NewRequestNotifier(b *broker.Broker) *RequestNotifier {
	return &RequestNotifier{broker: b}
}

func (n *RequestNotifier) RequestUpdated(req models.Request) {
	msg, err := json.Marshal(Envelope{Type: MessageTypeRequestUpdate, Payload: req})
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode request update")
		return
	}
	n.broker.Publish(RequestTopic(req.ParentID), msg)
}
