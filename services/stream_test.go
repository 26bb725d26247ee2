package services

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		fileSize  int64
		wantStart int64
		wantEnd   int64
		wantOK    bool
	}{
		{"full range", "bytes=0-999", 1000, 0, 999, true},
		{"interior range", "bytes=500-599", 1000, 500, 599, true},
		{"open ended", "bytes=200-", 1000, 200, 999, true},
		{"single byte", "bytes=0-0", 1000, 0, 0, true},
		{"last byte", "bytes=999-999", 1000, 999, 999, true},
		{"start at eof", "bytes=1000-", 1000, 0, 0, false},
		{"end past eof", "bytes=999-1999", 1000, 0, 0, false},
		{"inverted", "bytes=600-500", 1000, 0, 0, false},
		{"suffix form unsupported", "bytes=-500", 1000, 0, 0, false},
		{"wrong unit", "items=0-10", 1000, 0, 0, false},
		{"garbage", "bytes=abc-def", 1000, 0, 0, false},
		{"negative start", "bytes=-1-10", 1000, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, ok := ParseRange(tt.header, tt.fileSize)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantStart, start)
				assert.Equal(t, tt.wantEnd, end)
			}
		})
	}
}

// serveFixture stands up a one-route router around ServeFile and performs a
// request with the given Range header.
func serveFixture(t *testing.T, content []byte, rangeHeader string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "track.mp3")
	require.NoError(t, os.WriteFile(path, content, 0644))

	svc := NewStreamingService()
	r := gin.New()
	r.GET("/stream", func(c *gin.Context) {
		svc.ServeFile(c, path)
	})

	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestServeFileFullBody(t *testing.T) {
	content := []byte(strings.Repeat("abcdefghij", 100))
	w := serveFixture(t, content, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "bytes", w.Header().Get("Accept-Ranges"))
	assert.Equal(t, "1000", w.Header().Get("Content-Length"))
	assert.Equal(t, content, w.Body.Bytes())
}

func TestServeFilePartialContent(t *testing.T) {
	content := []byte(strings.Repeat("abcdefghij", 100))
	w := serveFixture(t, content, "bytes=500-599")

	assert.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "bytes 500-599/1000", w.Header().Get("Content-Range"))
	assert.Equal(t, "100", w.Header().Get("Content-Length"))
	assert.Equal(t, content[500:600], w.Body.Bytes())
}

func TestServeFileOpenEndedRange(t *testing.T) {
	content := []byte(strings.Repeat("x", 1000))
	w := serveFixture(t, content, "bytes=900-")

	assert.Equal(t, http.StatusPartialContent, w.Code)
	assert.Equal(t, "bytes 900-999/1000", w.Header().Get("Content-Range"))
	assert.Len(t, w.Body.Bytes(), 100)
}

func TestServeFileUnsatisfiableRange(t *testing.T) {
	content := []byte(strings.Repeat("x", 1000))
	w := serveFixture(t, content, "bytes=999-1999")

	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, w.Code)
	assert.Equal(t, "bytes */1000", w.Header().Get("Content-Range"))
}

func TestServeFileMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewStreamingService()
	r := gin.New()
	r.GET("/stream", func(c *gin.Context) {
		svc.ServeFile(c, filepath.Join(t.TempDir(), "gone.mp3"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "FILE_NOT_FOUND")
}

func TestContentType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"a.flac", "audio/flac"},
		{"a.MP3", "audio/mpeg"},
		{"a.m4a", "audio/mp4"},
		{"a.aac", "audio/mp4"},
		{"a.wav", "audio/wav"},
		{"a.ogg", "audio/ogg"},
		{"a.opus", "audio/ogg"},
		{"a.wma", "audio/x-ms-wma"},
		{"a.bin", "application/octet-stream"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ContentType(tt.path), tt.path)
	}
}
