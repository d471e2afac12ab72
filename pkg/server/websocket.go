package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/livetree-dev/livetree/pkg/protocol"
)

// wsConn is a renderer connected over WebSocket. Writes happen only on the
// write loop; the hub hands payloads over through the send queue.
type wsConn struct {
	conn   *websocket.Conn
	config *Config
	logger *slog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(conn *websocket.Conn, config *Config, logger *slog.Logger) *wsConn {
	return &wsConn{
		conn:   conn,
		config: config,
		logger: logger,
		send:   make(chan []byte, config.SendQueue),
		done:   make(chan struct{}),
	}
}

// Send implements Conn.
func (c *wsConn) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close implements Conn.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

// readLoop reads messages until the connection fails or is closed and hands
// each decoded message to handle.
func (c *wsConn) readLoop(clientID string, handle func(*protocol.Message), metrics *Metrics) {
	defer c.Close()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	})

	for {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.logger.Error("read error", "client", clientID, "error", err)
				metrics.recordWSError("read")
			}
			return
		}

		msg, err := protocol.DecodeMessage(data)
		if err != nil {
			c.logger.Warn("invalid message", "client", clientID, "error", err)
			metrics.recordWSError("decode")
			continue
		}
		if msg.ClientID == "" {
			msg.ClientID = clientID
		}
		handle(msg)
	}
}

// writeLoop writes queued payloads and pings until the connection is
// closed, then closes the socket.
func (c *wsConn) writeLoop(clientID string, metrics *Metrics) {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Error("write error", "client", clientID, "error", err)
				metrics.recordWSError("write")
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Error("ping error", "client", clientID, "error", err)
				metrics.recordWSError("ping")
				c.Close()
				return
			}

		case <-c.done:
			return
		}
	}
}
