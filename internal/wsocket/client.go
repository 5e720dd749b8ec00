package wsocket

import (
	"errors"
	"sync"
	"time"

	"bus_tracker_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	ErrClientClosed  = errors.New("client closed")
	ErrSendQueueFull = errors.New("client send queue full")
)

// Close frame payloads are capped at 125 bytes, two of which hold the code.
const maxCloseReasonLen = 123

// Client is one live socket. All writes to the socket happen on the
// writePump goroutine; other goroutines hand messages over through send.
type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Role   models.Role

	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

func NewClient(conn *websocket.Conn, userID uuid.UUID, role models.Role, sendBuffer int) *Client {
	if sendBuffer < 1 {
		sendBuffer = 1
	}
	return &Client{
		ID:     uuid.New(),
		UserID: userID,
		Role:   role,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

// Enqueue hands msg to the writer without blocking.
func (c *Client) Enqueue(msg []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close asks the writer to send a close frame and drop the socket. Only the
// first call has an effect.
func (c *Client) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		if len(reason) > maxCloseReasonLen {
			reason = reason[:maxCloseReasonLen]
		}
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
}

func (c *Client) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// CloseStatus reports the code and reason passed to the first Close.
func (c *Client) CloseStatus() (code int, reason string, closed bool) {
	if !c.Closed() {
		return 0, "", false
	}
	return c.closeCode, c.closeReason, true
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) writePump(writeWait, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		case <-c.done:
			frame := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
			c.conn.WriteControl(websocket.CloseMessage, frame, time.Now().Add(writeWait))
			return
		}
	}
}
