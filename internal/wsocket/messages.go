package wsocket

import (
	"encoding/json"

	"bus_tracker_go_backend/internal/models"
)

const (
	MessageTypeSubscribe      = "SUBSCRIBE"
	MessageTypeLocationUpdate = "LOCATION_UPDATE"
	MessageTypeRequestUpdate  = "REQUEST_UPDATE"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// InboundMessage is what clients send after the handshake.
type InboundMessage struct {
	Type  string  `json:"type"`
	BusID *string `json:"busId"`
}

type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type LocationPayload struct {
	BusID     string  `json:"busId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp string  `json:"timestamp"`
}

func encodeLocationUpdate(sample models.BusLocation) ([]byte, error) {
	return json.Marshal(Envelope{
		Type: MessageTypeLocationUpdate,
		Payload: LocationPayload{
			BusID:     sample.BusID.String(),
			Latitude:  sample.Latitude,
			Longitude: sample.Longitude,
			Timestamp: sample.CreatedAt.UTC().Format(timestampLayout),
		},
	})
}
