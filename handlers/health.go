package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sonora/services"
	"sonora/types"
)

// ServerName and ServerVersion identify this server to clients.
const (
	ServerName    = "sonora"
	ServerVersion = "1.0.0"
)

// HealthHandler handles liveness endpoints.
type HealthHandler struct {
	connections *services.ConnectionManager
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(connections *services.ConnectionManager) *HealthHandler {
	return &HealthHandler{connections: connections}
}

// Ping answers GET /ping, treating a deviceId parameter as a heartbeat.
func (h *HealthHandler) Ping(c *gin.Context) {
	if deviceID := c.Query("deviceId"); deviceID != "" {
		h.connections.Heartbeat(deviceID)
	}

	c.JSON(http.StatusOK, types.PingResponse{
		Status:    "ok",
		Timestamp: time.Now().Unix(),
		Server:    ServerName,
		Version:   ServerVersion,
	})
}
