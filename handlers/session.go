package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sonora/services"
	"sonora/types"
	"sonora/websocket"
)

// serverFeatures advertises server capabilities to connecting clients.
var serverFeatures = []string{"streaming", "transcoding", "artwork", "websocket"}

// SessionHandler handles device connect/disconnect.
type SessionHandler struct {
	connections *services.ConnectionManager
	hub         websocket.Hub
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(connections *services.ConnectionManager, hub websocket.Hub) *SessionHandler {
	return &SessionHandler{connections: connections, hub: hub}
}

// Connect answers POST /connect.
func (h *SessionHandler) Connect(c *gin.Context) {
	var req types.ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DeviceID == "" || req.DeviceName == "" {
		apiError(c, http.StatusBadRequest, types.CodeBadRequest, "deviceId and deviceName are required")
		return
	}

	h.connections.Register(req.DeviceID, req.DeviceName)
	h.hub.Broadcast(types.NewWSMessage(types.WSClientConnected, types.IdentifyData{
		DeviceID:   req.DeviceID,
		DeviceName: req.DeviceName,
	}))

	c.JSON(http.StatusOK, types.ConnectResponse{
		Status:        "connected",
		SessionID:     uuid.New().String(),
		ServerVersion: ServerVersion,
		Features:      serverFeatures,
	})
}

// Disconnect answers POST /disconnect.
func (h *SessionHandler) Disconnect(c *gin.Context) {
	var req types.DisconnectRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DeviceID == "" {
		apiError(c, http.StatusBadRequest, types.CodeBadRequest, "deviceId is required")
		return
	}

	h.connections.Disconnect(req.DeviceID)
	h.hub.Broadcast(types.NewWSMessage(types.WSClientDisconnected, gin.H{"deviceId": req.DeviceID}))

	c.JSON(http.StatusOK, types.DisconnectResponse{
		Status:   "disconnected",
		DeviceID: req.DeviceID,
	})
}

// HandleWebSocket upgrades GET /ws connections and starts the client pumps.
func (h *SessionHandler) HandleWebSocket(c *gin.Context) {
	upgrader := websocket.GetUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := websocket.NewClient(h.hub, h.connections, conn)
	h.hub.RegisterClient(client)
	client.StartPumps()
}
