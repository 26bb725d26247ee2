package services

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"sync"

	"golang.org/x/image/draw"
)

// ThumbnailSize is the bounding box, in pixels, for thumbnail renditions.
const ThumbnailSize = 300

// ArtworkSize is a requested artwork rendition tier.
type ArtworkSize string

const (
	ArtworkFull      ArtworkSize = "full"
	ArtworkThumbnail ArtworkSize = "thumbnail"
)

// ParseArtworkSize maps a query parameter to a tier; anything unrecognized is
// full size.
func ParseArtworkSize(s string) ArtworkSize {
	if s == string(ArtworkThumbnail) {
		return ArtworkThumbnail
	}
	return ArtworkFull
}

// ArtworkService produces resized cover thumbnails, caching them by
// (ID, size tier). Original-size requests bypass it entirely.
type ArtworkService struct {
	mu    sync.Mutex
	cache map[string][]byte
}

// NewArtworkService creates the service with an empty cache.
func NewArtworkService() *ArtworkService {
	return &ArtworkService{cache: make(map[string][]byte)}
}

// Thumbnail returns the cached thumbnail for key, generating it from raw on
// the first request.
func (a *ArtworkService) Thumbnail(key string, raw []byte) ([]byte, error) {
	cacheKey := key + ":" + string(ArtworkThumbnail)

	a.mu.Lock()
	if cached, ok := a.cache[cacheKey]; ok {
		a.mu.Unlock()
		return cached, nil
	}
	a.mu.Unlock()

	thumb, err := resizeToThumbnail(raw)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.cache[cacheKey] = thumb
	a.mu.Unlock()
	return thumb, nil
}

// resizeToThumbnail decodes raw image bytes and scales them to fit the
// thumbnail bounding box, re-encoded as JPEG.
func resizeToThumbnail(raw []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding artwork: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= ThumbnailSize && height <= ThumbnailSize {
		// Already small enough; re-encode for a consistent content type.
		return encodeJPEG(src)
	}

	scale := float64(ThumbnailSize) / float64(width)
	if height > width {
		scale = float64(ThumbnailSize) / float64(height)
	}
	dstWidth := int(float64(width) * scale)
	dstHeight := int(float64(height) * scale)

	dst := image.NewRGBA(image.Rect(0, 0, dstWidth, dstHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return encodeJPEG(dst)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encoding thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
