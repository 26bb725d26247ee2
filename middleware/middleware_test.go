package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sonora/services"
)

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	for _, m := range mw {
		r.Use(m)
	}
	r.GET("/ok", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func TestHeartbeatFromQueryParameter(t *testing.T) {
	connections := services.NewConnectionManager()
	client := connections.Register("device-1", "Phone")
	client.LastSeen = time.Now().Add(-time.Hour)

	r := newRouter(Heartbeat(connections))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok?deviceId=device-1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.WithinDuration(t, time.Now(), client.LastSeen, time.Second)
}

func TestHeartbeatFromHeader(t *testing.T) {
	connections := services.NewConnectionManager()
	client := connections.Register("device-1", "Phone")
	client.LastSeen = time.Now().Add(-time.Hour)

	r := newRouter(Heartbeat(connections))
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("X-Device-Id", "device-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.WithinDuration(t, time.Now(), client.LastSeen, time.Second)
}

func TestHeartbeatIgnoresUnknownDevice(t *testing.T) {
	connections := services.NewConnectionManager()

	r := newRouter(Heartbeat(connections))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok?deviceId=ghost", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, connections.Clients())
}

func TestCORSAllowsAnyOriginByDefault(t *testing.T) {
	r := newRouter(CORS("*"))

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Range")
}

func TestCORSRestrictsToConfiguredOrigins(t *testing.T) {
	r := newRouter(CORS("http://app.local"))

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("Origin", "http://app.local")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "http://app.local", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("Origin", "http://evil.local")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflightAllowsRangeHeader(t *testing.T) {
	r := newRouter(CORS("*"))

	req := httptest.NewRequest(http.MethodOptions, "/ok", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	req.Header.Set("Access-Control-Request-Headers", "Range")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Range")
}
