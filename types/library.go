package types

import "time"

// SongRecord represents a single indexed audio file. The ID is derived
// deterministically from the absolute file path, so re-scans of an unchanged
// tree yield identical IDs.
type SongRecord struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Artist      string    `json:"artist,omitempty"`
	Album       string    `json:"album,omitempty"`
	AlbumArtist string    `json:"albumArtist,omitempty"`
	TrackNumber int       `json:"trackNumber,omitempty"`
	Duration    float64   `json:"duration"`
	FilePath    string    `json:"-"`
	Artwork     []byte    `json:"-"`
	ModTime     time.Time `json:"-"`
}

// AlbumRecord groups songs sharing the same (title, artist) key. Albums with
// fewer than two songs are not surfaced; their songs are standalone instead.
type AlbumRecord struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Artist      string        `json:"artist,omitempty"`
	Year        int           `json:"year,omitempty"`
	Songs       []*SongRecord `json:"songs"`
	ArtworkPath string        `json:"-"`
}

// Valid reports whether the album should be surfaced as an album.
func (a *AlbumRecord) Valid() bool {
	return len(a.Songs) >= 2
}

// LibrarySnapshot is an immutable view of the indexed library. A scan builds a
// complete snapshot off to the side and publishes it with a single atomic swap,
// so readers never observe partial state.
type LibrarySnapshot struct {
	Albums     map[string]*AlbumRecord
	Songs      []*SongRecord
	SongCount  int
	AlbumCount int
	ScannedAt  time.Time
}

// EmptySnapshot returns the snapshot served before the first scan completes.
func EmptySnapshot() *LibrarySnapshot {
	return &LibrarySnapshot{Albums: map[string]*AlbumRecord{}}
}

// ScanErrorKind categorizes I/O failures collected during a scan.
type ScanErrorKind string

const (
	ScanErrorPermission ScanErrorKind = "permission-denied"
	ScanErrorNotFound   ScanErrorKind = "path-not-found"
	ScanErrorUnknown    ScanErrorKind = "unknown"
)

// ScanError is one categorized failure from a scan pass.
type ScanError struct {
	Path string        `json:"path"`
	Kind ScanErrorKind `json:"kind"`
	Err  string        `json:"error"`
}

// ScanResult is the transient output of one filesystem walk. RootUnavailable
// marks a walk that never started because the root itself was missing or
// unreadable, as opposed to a root that is genuinely empty.
type ScanResult struct {
	Files           []string    `json:"files"`
	DirCount        int         `json:"dirCount"`
	Errors          []ScanError `json:"errors,omitempty"`
	RootUnavailable bool        `json:"-"`
}

// Quality is a streaming/download quality tier.
type Quality string

const (
	QualityOriginal Quality = "original"
	QualityMedium   Quality = "medium"
	QualityLow      Quality = "low"
)

// QualityPreset maps a tier to its transcode target.
type QualityPreset struct {
	Quality             Quality
	Bitrate             string
	Codec               string
	RequiresTranscoding bool
}

var qualityPresets = map[Quality]QualityPreset{
	QualityOriginal: {Quality: QualityOriginal},
	QualityMedium:   {Quality: QualityMedium, Bitrate: "192k", Codec: "libmp3lame", RequiresTranscoding: true},
	QualityLow:      {Quality: QualityLow, Bitrate: "96k", Codec: "libmp3lame", RequiresTranscoding: true},
}

// ParseQuality maps a request parameter to a preset. "high", an empty value,
// and anything unrecognized resolve to the original quality.
func ParseQuality(s string) QualityPreset {
	switch Quality(s) {
	case QualityMedium, QualityLow:
		return qualityPresets[Quality(s)]
	default:
		return qualityPresets[QualityOriginal]
	}
}

// ConnectedClient is one known remote device, refreshed by heartbeats.
type ConnectedClient struct {
	DeviceID   string    `json:"deviceId"`
	DeviceName string    `json:"deviceName"`
	LastSeen   time.Time `json:"lastSeen"`
}
