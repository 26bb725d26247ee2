package services

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"sonora/logger"
	"sonora/types"
)

// streamChunkSize bounds how much file content is buffered per write while
// streaming.
const streamChunkSize = 64 * 1024

// StreamingService serves audio bytes with HTTP range-request semantics.
type StreamingService struct{}

// NewStreamingService creates a streaming service.
func NewStreamingService() *StreamingService {
	return &StreamingService{}
}

// ContentType returns the MIME type for an audio file path.
func ContentType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".flac":
		return "audio/flac"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".mp4", ".alac", ".aac":
		return "audio/mp4"
	case ".wav":
		return "audio/wav"
	case ".aiff":
		return "audio/aiff"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".wma":
		return "audio/x-ms-wma"
	default:
		return "application/octet-stream"
	}
}

// ServeFile streams fullPath, honoring a Range header when present. The file
// handle is closed on every exit path, including a transport interruption
// mid-stream.
func (s *StreamingService) ServeFile(c *gin.Context, fullPath string) {
	fileInfo, err := os.Stat(fullPath)
	if err != nil || fileInfo.IsDir() {
		c.JSON(http.StatusNotFound, types.ErrorResponse{
			Error: types.APIError{Code: types.CodeFileNotFound, Message: "file not found"},
		})
		return
	}

	file, err := os.Open(fullPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error: types.APIError{Code: "FILE_ACCESS", Message: "failed to open file"},
		})
		return
	}
	defer file.Close()

	c.Header("Content-Type", ContentType(fullPath))
	c.Header("Accept-Ranges", "bytes")
	c.Header("Cache-Control", "public, max-age=3600")

	if rangeHeader := c.GetHeader("Range"); rangeHeader != "" {
		s.serveRange(c, file, fileInfo.Size(), rangeHeader)
		return
	}

	c.Header("Content-Length", strconv.FormatInt(fileInfo.Size(), 10))
	c.Status(http.StatusOK)
	if err := copyChunked(c.Writer, file, fileInfo.Size()); err != nil {
		logger.Debug("stream interrupted",
			logger.String("path", fullPath),
			logger.ErrorField(err))
	}
}

// serveRange handles a single bytes=<start>-<end> range. Unsatisfiable ranges
// get 416 with the total size advertised.
func (s *StreamingService) serveRange(c *gin.Context, file *os.File, fileSize int64, rangeHeader string) {
	start, end, ok := ParseRange(rangeHeader, fileSize)
	if !ok {
		c.Header("Content-Range", fmt.Sprintf("bytes */%d", fileSize))
		c.Status(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	if _, err := file.Seek(start, io.SeekStart); err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error: types.APIError{Code: "FILE_ACCESS", Message: "failed to seek file"},
		})
		return
	}

	contentLength := end - start + 1
	c.Header("Content-Length", strconv.FormatInt(contentLength, 10))
	c.Header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, fileSize))
	c.Status(http.StatusPartialContent)

	if err := copyChunked(c.Writer, file, contentLength); err != nil {
		logger.Debug("range stream interrupted",
			logger.Int64("start", start),
			logger.Int64("end", end),
			logger.ErrorField(err))
	}
}

// ParseRange parses a bytes=<start>-<end> header against fileSize. A missing
// end defaults to end-of-file. It reports ok=false when the header is
// malformed or the range cannot be satisfied.
func ParseRange(rangeHeader string, fileSize int64) (start, end int64, ok bool) {
	if !strings.HasPrefix(rangeHeader, "bytes=") {
		return 0, 0, false
	}

	spec := strings.TrimPrefix(rangeHeader, "bytes=")
	parts := strings.Split(spec, "-")
	if len(parts) != 2 || parts[0] == "" {
		return 0, 0, false
	}

	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || start < 0 {
		return 0, 0, false
	}

	if parts[1] != "" {
		end, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, false
		}
	} else {
		end = fileSize - 1
	}

	if start >= fileSize || end >= fileSize || start > end {
		return 0, 0, false
	}
	return start, end, true
}

// copyChunked copies exactly n bytes in bounded chunks so large files are
// never buffered whole.
func copyChunked(dst io.Writer, src io.Reader, n int64) error {
	buf := make([]byte, streamChunkSize)
	_, err := io.CopyBuffer(dst, io.LimitReader(src, n), buf)
	return err
}
