package middleware

import (
	"github.com/gin-gonic/gin"

	"sonora/services"
)

// Heartbeat treats any request carrying a known device ID as an implicit
// heartbeat. The ID may arrive as a query parameter or the X-Device-Id
// header.
func Heartbeat(connections *services.ConnectionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		deviceID := c.Query("deviceId")
		if deviceID == "" {
			deviceID = c.GetHeader("X-Device-Id")
		}
		if deviceID != "" {
			connections.Heartbeat(deviceID)
		}
		c.Next()
	}
}
