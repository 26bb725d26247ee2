package services

import (
	"sync"
	"time"

	"sonora/logger"
	"sonora/types"
)

// ConnectionManager tracks one ConnectedClient per device ID via heartbeats.
// The stale-client sweep is driven externally by the server's cleanup ticker.
type ConnectionManager struct {
	mu      sync.RWMutex
	clients map[string]*types.ConnectedClient
}

// NewConnectionManager creates an empty registry.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{clients: make(map[string]*types.ConnectedClient)}
}

// Register adds or refreshes a client. Re-registration with the same device ID
// refreshes rather than duplicates.
func (c *ConnectionManager) Register(deviceID, deviceName string) *types.ConnectedClient {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, ok := c.clients[deviceID]
	if !ok {
		client = &types.ConnectedClient{DeviceID: deviceID}
		c.clients[deviceID] = client
		logger.Info("client connected", logger.String("deviceId", deviceID), logger.String("deviceName", deviceName))
	}
	if deviceName != "" {
		client.DeviceName = deviceName
	}
	client.LastSeen = time.Now()
	return client
}

// Heartbeat refreshes a known device's last-seen timestamp. Unknown devices
// are ignored; they must connect first.
func (c *ConnectionManager) Heartbeat(deviceID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, ok := c.clients[deviceID]
	if !ok {
		return false
	}
	client.LastSeen = time.Now()
	return true
}

// Disconnect removes a client explicitly.
func (c *ConnectionManager) Disconnect(deviceID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.clients[deviceID]; !ok {
		return false
	}
	delete(c.clients, deviceID)
	logger.Info("client disconnected", logger.String("deviceId", deviceID))
	return true
}

// Clients returns a copy of the current registry.
func (c *ConnectionManager) Clients() []types.ConnectedClient {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.ConnectedClient, 0, len(c.clients))
	for _, client := range c.clients {
		out = append(out, *client)
	}
	return out
}

// CleanupStale removes clients whose last heartbeat exceeds threshold and
// returns them so the caller can broadcast disconnect notifications.
func (c *ConnectionManager) CleanupStale(threshold time.Duration) []types.ConnectedClient {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-threshold)
	var removed []types.ConnectedClient
	for id, client := range c.clients {
		if client.LastSeen.Before(cutoff) {
			removed = append(removed, *client)
			delete(c.clients, id)
		}
	}

	if len(removed) > 0 {
		logger.Info("removed stale clients", logger.Int("count", len(removed)))
	}
	return removed
}
