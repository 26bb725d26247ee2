package handlers

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"sonora/services"
	"sonora/types"
)

// LibraryHandler serves library projections and scan control.
type LibraryHandler struct {
	library *services.LibraryManager
}

// NewLibraryHandler creates a library handler.
func NewLibraryHandler(library *services.LibraryManager) *LibraryHandler {
	return &LibraryHandler{library: library}
}

// GetLibrary answers GET /library with the full projection of the current
// snapshot.
func (h *LibraryHandler) GetLibrary(c *gin.Context) {
	c.JSON(http.StatusOK, h.library.LibraryResponse())
}

// GetAlbum answers GET /albums/:albumId.
func (h *LibraryHandler) GetAlbum(c *gin.Context) {
	album, ok := h.library.AlbumDetail(c.Param("albumId"))
	if !ok {
		apiError(c, http.StatusNotFound, types.CodeAlbumNotFound, "album not found")
		return
	}
	c.JSON(http.StatusOK, album)
}

// TriggerScan answers POST /scan. A scan already in flight is left alone.
func (h *LibraryHandler) TriggerScan(c *gin.Context) {
	if h.library.Scan() {
		c.JSON(http.StatusAccepted, gin.H{"status": "scanning"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "busy"})
}

// GetSettings answers GET /settings.
func (h *LibraryHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, types.SettingsResponse{MusicRoot: h.library.MusicRoot()})
}

// UpdateSettings answers POST /settings, swapping the music root and
// triggering a rescan.
func (h *LibraryHandler) UpdateSettings(c *gin.Context) {
	var req types.SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.MusicRoot == "" {
		apiError(c, http.StatusBadRequest, types.CodeBadRequest, "musicRoot is required")
		return
	}

	info, err := os.Stat(req.MusicRoot)
	if err != nil || !info.IsDir() {
		apiError(c, http.StatusBadRequest, types.CodeBadRequest, "musicRoot must be an existing directory")
		return
	}

	h.library.SetMusicRoot(req.MusicRoot)
	h.library.Scan()
	c.JSON(http.StatusOK, types.SettingsResponse{MusicRoot: req.MusicRoot})
}
