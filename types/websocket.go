package types

import "time"

// WSMessage is the JSON envelope for every WebSocket frame, in both
// directions.
type WSMessage struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Server-pushed message types.
const (
	WSLibraryUpdated     = "library-updated"
	WSClientConnected    = "client-connected"
	WSClientDisconnected = "client-disconnected"
	WSPong               = "pong"
)

// Client-pushed message types.
const (
	WSIdentify = "identify"
	WSPing     = "ping"
)

// IdentifyData is the payload of an identify message.
type IdentifyData struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
}

// NewWSMessage stamps an envelope with the current time.
func NewWSMessage(msgType string, data any) WSMessage {
	return WSMessage{Type: msgType, Data: data, Timestamp: time.Now()}
}
