package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dhowden/tag"
	"golang.org/x/text/encoding/charmap"

	"sonora/logger"
	"sonora/types"
)

// MetadataExtractor builds SongRecords from audio files.
type MetadataExtractor struct {
	ffmpegPath string
	makeSongID func(absPath string) string
}

// NewMetadataExtractor creates an extractor. ffmpegPath locates the ffmpeg
// binary whose sibling ffprobe supplies durations; an empty path disables
// duration probing.
func NewMetadataExtractor(ffmpegPath string, makeSongID func(string) string) *MetadataExtractor {
	return &MetadataExtractor{ffmpegPath: ffmpegPath, makeSongID: makeSongID}
}

// repairEncoding corrects mojibake where UTF-8 bytes were misread as Latin-1.
// The field is re-encoded as Latin-1 and re-decoded as UTF-8; the repaired
// string wins only if it is valid, different, non-empty, and free of
// replacement characters.
func repairEncoding(s string) string {
	if s == "" {
		return s
	}

	raw, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil {
		// Contains runes outside Latin-1, so it was never misdecoded.
		return s
	}

	if !utf8.ValidString(raw) {
		return s
	}
	if raw == s || raw == "" || strings.ContainsRune(raw, utf8.RuneError) {
		return s
	}
	return raw
}

// Extract reads tags from a single file. A failure is returned to the caller,
// which logs and skips the file without aborting the batch.
func (e *MetadataExtractor) Extract(path string) (*types.SongRecord, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", absPath, err)
	}

	record := &types.SongRecord{
		ID:       e.makeSongID(absPath),
		FilePath: absPath,
		ModTime:  info.ModTime(),
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", absPath, err)
	}
	defer file.Close()

	meta, err := tag.ReadFrom(file)
	if err != nil {
		logger.Debug("no readable tags, using filename",
			logger.String("path", absPath),
			logger.ErrorField(err))
	} else {
		record.Title = repairEncoding(meta.Title())
		record.Artist = repairEncoding(meta.Artist())
		record.Album = repairEncoding(meta.Album())
		record.AlbumArtist = repairEncoding(meta.AlbumArtist())
		record.TrackNumber, _ = meta.Track()
		if pic := meta.Picture(); pic != nil {
			record.Artwork = pic.Data
		}
	}

	if record.Title == "" {
		base := filepath.Base(absPath)
		record.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	if d, err := e.probeDuration(absPath); err == nil {
		record.Duration = d
	} else {
		logger.Debug("duration probe failed",
			logger.String("path", absPath),
			logger.ErrorField(err))
	}

	return record, nil
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// probeDuration uses ffprobe to get the duration of an audio file in seconds.
func (e *MetadataExtractor) probeDuration(inputFile string) (float64, error) {
	if e.ffmpegPath == "" {
		return 0, fmt.Errorf("ffprobe not configured")
	}
	ffprobePath := strings.Replace(e.ffmpegPath, "ffmpeg", "ffprobe", 1)

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		inputFile,
	}

	cmd := exec.Command(ffprobePath, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w: %s", inputFile, err, stderr.String())
	}

	var probeData ffprobeOutput
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return 0, fmt.Errorf("unmarshal ffprobe output for %s: %w", inputFile, err)
	}

	if probeData.Format.Duration == "" {
		return 0, fmt.Errorf("duration not found in ffprobe output for %s", inputFile)
	}

	duration, err := strconv.ParseFloat(probeData.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q for %s: %w", probeData.Format.Duration, inputFile, err)
	}

	return duration, nil
}
