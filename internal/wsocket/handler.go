package wsocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"bus_tracker_go_backend/internal/auth"
	"bus_tracker_go_backend/internal/models"
	"bus_tracker_go_backend/internal/utils/broker"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const maxMessageSize = 4096

type Settings struct {
	SubscribeTimeout time.Duration
	WriteWait        time.Duration
	PongWait         time.Duration
	SendBufferSize   int
}

type Handler struct {
	upgrader websocket.Upgrader
	verifier *auth.TokenVerifier
	registry *Registry
	router   *Router
	broker   *broker.Broker
	settings Settings
}

func NewHandler(upgrader websocket.Upgrader, verifier *auth.TokenVerifier, registry *Registry, router *Router, messageBroker *broker.Broker, settings Settings) *Handler {
	return &Handler{
		upgrader: upgrader,
		verifier: verifier,
		registry: registry,
		router:   router,
		broker:   messageBroker,
		settings: settings,
	}
}

// HandleWebSocket upgrades the request, authenticates the token query
// parameter and then serves SUBSCRIBE messages until the socket closes.
// Authentication failures are reported as a policy-violation close frame.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("Error upgrading connection")
		return
	}

	identity, err := h.verifier.Verify(r.URL.Query().Get("token"))
	if err != nil {
		log.Info().Err(err).Str("remote", r.RemoteAddr).Msg("Socket authentication failed")
		reason := err.Error()
		if len(reason) > maxCloseReasonLen {
			reason = reason[:maxCloseReasonLen]
		}
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
			time.Now().Add(h.settings.WriteWait))
		conn.Close()
		return
	}

	client := NewClient(conn, identity.UserID, identity.Role, h.settings.SendBufferSize)
	logger := log.With().
		Str("connId", client.ID.String()).
		Str("userId", identity.UserID.String()).
		Str("role", string(identity.Role)).
		Logger()
	ctx, cancel := context.WithCancel(logger.WithContext(r.Context()))
	defer cancel()

	h.registry.Register(client, identity.Role, false)
	logger.Info().Msg("Socket connected")
	defer func() {
		h.registry.Unregister(client)
		client.Close(websocket.CloseNormalClosure, "")
		logger.Info().Msg("Socket disconnected")
	}()

	go client.writePump(h.settings.WriteWait, h.pingPeriod())

	var subscribedOnce sync.Once
	subscribed := make(chan struct{})
	go h.enforceSubscribeTimeout(client, subscribed)

	if identity.Role == models.RoleParent {
		updates := h.broker.Subscribe(RequestTopic(identity.UserID))
		defer h.broker.Unsubscribe(RequestTopic(identity.UserID), updates)
		go forwardUpdates(client, updates)
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(h.settings.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.settings.PongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug().Err(err).Msg("Socket read error")
			}
			return
		}

		var msg InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Debug().Err(err).Msg("Ignoring malformed message")
			continue
		}

		switch msg.Type {
		case MessageTypeSubscribe:
			if err := h.router.HandleSubscribe(ctx, client, msg.BusID); err != nil {
				logger.Info().Err(err).Msg("Subscription refused")
				return
			}
			subscribedOnce.Do(func() { close(subscribed) })
			logger.Debug().Msg("Subscription accepted")
		default:
			logger.Debug().Str("type", msg.Type).Msg("Ignoring unknown message type")
		}
	}
}

func (h *Handler) pingPeriod() time.Duration {
	return (h.settings.PongWait * 9) / 10
}

func (h *Handler) enforceSubscribeTimeout(client *Client, subscribed <-chan struct{}) {
	timer := time.NewTimer(h.settings.SubscribeTimeout)
	defer timer.Stop()
	select {
	case <-timer.C:
		client.Close(websocket.ClosePolicyViolation, "no subscription received")
	case <-subscribed:
	case <-client.Done():
	}
}

func forwardUpdates(client *Client, updates <-chan interface{}) {
	for msg := range updates {
		data, ok := msg.([]byte)
		if !ok {
			continue
		}
		if err := client.Enqueue(data); err == ErrClientClosed {
			return
		}
	}
}
