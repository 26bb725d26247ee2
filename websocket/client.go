package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sonora/logger"
	"sonora/services"
	"sonora/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Remote clients connect from app origins; same policy as the REST
		// CORS layer.
		return true
	},
}

// Client represents one WebSocket connection. A connection is anonymous until
// the client sends an identify message.
type Client struct {
	hub         Hub
	connections *services.ConnectionManager
	conn        *websocket.Conn
	send        chan types.WSMessage

	mu       sync.Mutex
	deviceID string
}

// NewClient creates a client for an upgraded connection.
func NewClient(hub Hub, connections *services.ConnectionManager, conn *websocket.Conn) *Client {
	return &Client{
		hub:         hub,
		connections: connections,
		conn:        conn,
		send:        make(chan types.WSMessage, 256),
	}
}

// GetUpgrader returns the WebSocket upgrader.
func GetUpgrader() websocket.Upgrader {
	return upgrader
}

// DeviceID returns the identified device ID, empty while anonymous.
func (c *Client) DeviceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceID
}

func (c *Client) setDeviceID(id string) {
	c.mu.Lock()
	c.deviceID = id
	c.mu.Unlock()
}

// StartPumps starts the read and write pumps for the client.
func (c *Client) StartPumps() {
	go c.writePump()
	go c.readPump()
}

// inboundMessage defers payload decoding until the type is known.
type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// readPump handles reading from the WebSocket connection. Malformed messages
// are logged and dropped; the connection stays open.
func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket error", logger.ErrorField(err))
			}
			break
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Warn("dropping malformed websocket message", logger.ErrorField(err))
			continue
		}

		c.handleMessage(msg)
	}
}

// handleMessage dispatches one inbound envelope. Every message from an
// identified device counts as a heartbeat.
func (c *Client) handleMessage(msg inboundMessage) {
	if id := c.DeviceID(); id != "" {
		c.connections.Heartbeat(id)
	}

	switch msg.Type {
	case types.WSIdentify:
		var data types.IdentifyData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.DeviceID == "" {
			logger.Warn("dropping malformed identify message", logger.ErrorField(err))
			return
		}
		c.setDeviceID(data.DeviceID)
		c.connections.Register(data.DeviceID, data.DeviceName)
		c.hub.Broadcast(types.NewWSMessage(types.WSClientConnected, data))

	case types.WSPing:
		c.Send(types.NewWSMessage(types.WSPong, nil))

	default:
		logger.Debug("ignoring unknown websocket message type", logger.String("type", msg.Type))
	}
}

// Send queues an envelope for this client only.
func (c *Client) Send(msg types.WSMessage) {
	select {
	case c.send <- msg:
	default:
		logger.Warn("websocket client send buffer full, dropping message",
			logger.String("type", msg.Type))
	}
}

// writePump handles writing to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				logger.Warn("websocket write error", logger.ErrorField(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
