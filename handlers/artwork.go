package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sonora/logger"
	"sonora/services"
	"sonora/types"
)

// artworkCacheControl lets clients cache covers aggressively; artwork for an
// ID only changes when the library is rebuilt.
const artworkCacheControl = "public, max-age=31536000"

// ArtworkHandler serves album and song cover art.
type ArtworkHandler struct {
	library *services.LibraryManager
	artwork *services.ArtworkService
}

// NewArtworkHandler creates an artwork handler.
func NewArtworkHandler(library *services.LibraryManager, artwork *services.ArtworkService) *ArtworkHandler {
	return &ArtworkHandler{library: library, artwork: artwork}
}

// GetAlbumArtwork answers GET /artwork/:albumId?size=thumbnail|full.
func (h *ArtworkHandler) GetAlbumArtwork(c *gin.Context) {
	albumID := c.Param("albumId")
	raw, ok := h.library.AlbumArtwork(albumID)
	if !ok {
		apiError(c, http.StatusNotFound, types.CodeArtworkNotFound, "artwork not found")
		return
	}
	h.serve(c, "album:"+albumID, raw)
}

// GetSongArtwork answers GET /song-artwork/:songId?size=thumbnail|full.
func (h *ArtworkHandler) GetSongArtwork(c *gin.Context) {
	songID := c.Param("songId")
	raw, ok := h.library.SongArtwork(songID)
	if !ok {
		apiError(c, http.StatusNotFound, types.CodeArtworkNotFound, "artwork not found")
		return
	}
	h.serve(c, "song:"+songID, raw)
}

// serve writes either the raw embedded bytes or a cached thumbnail.
func (h *ArtworkHandler) serve(c *gin.Context, key string, raw []byte) {
	c.Header("Cache-Control", artworkCacheControl)

	if services.ParseArtworkSize(c.Query("size")) == services.ArtworkFull {
		c.Data(http.StatusOK, http.DetectContentType(raw), raw)
		return
	}

	thumb, err := h.artwork.Thumbnail(key, raw)
	if err != nil {
		logger.Warn("thumbnail generation failed, serving original",
			logger.String("key", key),
			logger.ErrorField(err))
		c.Data(http.StatusOK, http.DetectContentType(raw), raw)
		return
	}
	c.Data(http.StatusOK, "image/jpeg", thumb)
}
