package handlers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"sonora/logger"
	"sonora/services"
	"sonora/types"
)

// StreamHandler serves audio bytes and downloads.
type StreamHandler struct {
	library    *services.LibraryManager
	streaming  *services.StreamingService
	transcoder *services.TranscodingService
}

// NewStreamHandler creates a stream handler.
func NewStreamHandler(library *services.LibraryManager, streaming *services.StreamingService, transcoder *services.TranscodingService) *StreamHandler {
	return &StreamHandler{library: library, streaming: streaming, transcoder: transcoder}
}

// pathWithinRoot reports whether path is a descendant of root after resolving
// both to absolute form.
func pathWithinRoot(root, path string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolveSong maps the songId parameter to a validated file path, writing the
// error response itself when resolution fails. The resolved absolute path is
// never echoed back to the client.
func (h *StreamHandler) resolveSong(c *gin.Context) (*types.SongRecord, bool) {
	song, ok := h.library.Song(c.Param("songId"))
	if !ok {
		apiError(c, http.StatusNotFound, types.CodeSongNotFound, "song not found")
		return nil, false
	}

	if !pathWithinRoot(h.library.MusicRoot(), song.FilePath) {
		apiError(c, http.StatusForbidden, types.CodeForbidden, "access denied")
		return nil, false
	}

	if _, err := os.Stat(song.FilePath); err != nil {
		apiError(c, http.StatusNotFound, types.CodeFileNotFound, "file not found")
		return nil, false
	}
	return song, true
}

// Stream answers GET /stream/:songId?quality=high|medium|low with range
// support, or a chunked live-transcode stream.
func (h *StreamHandler) Stream(c *gin.Context) {
	song, ok := h.resolveSong(c)
	if !ok {
		return
	}

	preset := types.ParseQuality(c.Query("quality"))
	if !preset.RequiresTranscoding || !h.transcoder.Available() {
		if preset.RequiresTranscoding {
			logger.Warn("transcoding unavailable, serving original",
				logger.String("songId", song.ID))
		}
		h.streaming.ServeFile(c, song.FilePath)
		return
	}

	// Seeking needs a complete file, so range requests wait for the cached
	// rendition. First play of an uncached song goes through the live pipe
	// for latency while the cache fills in the background; the single-flight
	// pending map keeps concurrent requests from stacking transcode jobs.
	if h.transcoder.HasCached(song.ID, preset) || c.GetHeader("Range") != "" {
		h.serveCached(c, song, preset)
		return
	}

	go func() {
		if _, err := h.transcoder.CachedTranscode(song.ID, song.FilePath, preset); err != nil {
			logger.Debug("background cache fill failed",
				logger.String("songId", song.ID),
				logger.ErrorField(err))
		}
	}()
	h.serveLive(c, song, preset)
}

// serveCached streams a cached transcode, holding it against eviction for the
// duration of the response.
func (h *StreamHandler) serveCached(c *gin.Context, song *types.SongRecord, preset types.QualityPreset) {
	cached, release, err := h.transcoder.AcquireCached(song.ID, song.FilePath, preset)
	if err != nil {
		logger.Warn("transcode failed, serving original",
			logger.String("songId", song.ID),
			logger.ErrorField(err))
		h.streaming.ServeFile(c, song.FilePath)
		return
	}
	defer release()

	h.streaming.ServeFile(c, cached)
}

// serveLive pipes ffmpeg output straight to the client so playback starts
// before the full rendition exists.
func (h *StreamHandler) serveLive(c *gin.Context, song *types.SongRecord, preset types.QualityPreset) {
	reader, err := h.transcoder.StreamTranscode(c.Request.Context(), song.FilePath, preset)
	if err != nil {
		logger.Warn("live transcode failed, serving original",
			logger.String("songId", song.ID),
			logger.ErrorField(err))
		h.streaming.ServeFile(c, song.FilePath)
		return
	}
	defer reader.Close()

	c.Header("Content-Type", "audio/mpeg")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, reader); err != nil {
		logger.Debug("live stream interrupted",
			logger.String("songId", song.ID),
			logger.ErrorField(err))
	}
}

// Download answers GET /download/:songId?quality=... with an attachment
// disposition. Transcoded downloads use an uncached temp file removed when
// the response finishes, success or not.
func (h *StreamHandler) Download(c *gin.Context) {
	song, ok := h.resolveSong(c)
	if !ok {
		return
	}

	preset := types.ParseQuality(c.Query("quality"))
	servePath := song.FilePath

	if preset.RequiresTranscoding && h.transcoder.Available() {
		tempPath, err := h.transcoder.TranscodeForDownload(song.ID, song.FilePath, preset)
		if err != nil {
			logger.Warn("download transcode failed, serving original",
				logger.String("songId", song.ID),
				logger.ErrorField(err))
		} else {
			servePath = tempPath
			defer h.transcoder.CleanupDownload(tempPath, song.FilePath)
		}
	} else if preset.RequiresTranscoding {
		logger.Warn("transcoding unavailable, serving original download",
			logger.String("songId", song.ID))
	}

	filename := downloadFilename(song, servePath)
	c.Header("Content-Disposition", contentDisposition(filename))
	h.streaming.ServeFile(c, servePath)
}

// downloadFilename derives a client-facing filename from the song title and
// the served rendition's extension.
func downloadFilename(song *types.SongRecord, servePath string) string {
	ext := filepath.Ext(servePath)
	title := song.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(song.FilePath), filepath.Ext(song.FilePath))
	}
	return title + ext
}

// contentDisposition builds an RFC 5987 dual-encoded attachment header: an
// ASCII fallback plus the UTF-8 percent-encoded form for non-ASCII names.
func contentDisposition(filename string) string {
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`,
		asciiFallback(filename), percentEncode(filename))
}

// asciiFallback replaces anything outside printable ASCII (and the quote and
// backslash) with underscores.
func asciiFallback(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			b.WriteByte('_')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// percentEncode encodes a UTF-8 string per RFC 5987 attr-char rules.
func percentEncode(s string) string {
	const attrChars = "!#$&+-.^_`|~"
	var b strings.Builder
	for _, c := range []byte(s) {
		isAlnum := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if isAlnum || strings.IndexByte(attrChars, c) >= 0 {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
