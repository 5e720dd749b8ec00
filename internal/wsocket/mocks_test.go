package wsocket

import (
	"context"
	"encoding/json"
	"testing"

	"bus_tracker_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
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

// registerClient registers a socketless client; its queued messages are read
// straight from the send channel.
func registerClient(registry *Registry, role models.Role, busID string, adminAll bool) *Client {
	c := NewClient(nil, uuid.New(), role, 16)
	registry.Register(c, role, false)
	registry.SetSubscription(c, busID, adminAll)
	return c
}

func drain(c *Client) [][]byte {
	var out [][]byte
	for {
		select {
		case msg := <-c.send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func decodeLocation(t *testing.T, data []byte) LocationPayload {
	t.Helper()
	var env struct {
		Type    string          `json:"type"`
		Payload LocationPayload `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	require.Equal(t, MessageTypeLocationUpdate, env.Type)
	return env.Payload
}
