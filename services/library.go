package services

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"sonora/logger"
	"sonora/types"
)

// SongIDForPath derives the stable, content-independent song ID from an
// absolute file path.
func SongIDForPath(absPath string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("sonora:song:"+absPath)).String()
}

// AlbumIDForKey derives the stable album ID from the grouping key.
func AlbumIDForKey(title, artist string) string {
	key := strings.ToLower(title) + "\x00" + strings.ToLower(artist)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("sonora:album:"+key)).String()
}

// LibraryManager orchestrates the scan pipeline and owns the current library
// snapshot. Lookups read the published snapshot and never block on a running
// scan.
type LibraryManager struct {
	scanner   *FileScanner
	extractor *MetadataExtractor
	detector  *DuplicateDetector
	builder   *AlbumBuilder

	snapshot atomic.Pointer[types.LibrarySnapshot]

	mu        sync.Mutex
	scanning  bool
	musicRoot string
	listeners []func(*types.LibrarySnapshot)
}

// NewLibraryManager wires the pipeline for the given music root.
func NewLibraryManager(musicRoot, ffmpegPath string) *LibraryManager {
	m := &LibraryManager{
		scanner:   NewFileScanner(),
		extractor: NewMetadataExtractor(ffmpegPath, SongIDForPath),
		detector:  NewDuplicateDetector(),
		builder:   NewAlbumBuilder(AlbumIDForKey),
		musicRoot: musicRoot,
	}
	m.snapshot.Store(types.EmptySnapshot())
	return m
}

// MusicRoot returns the configured music root.
func (m *LibraryManager) MusicRoot() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.musicRoot
}

// SetMusicRoot swaps the configured music root. The library reflects it after
// the next scan.
func (m *LibraryManager) SetMusicRoot(root string) {
	m.mu.Lock()
	m.musicRoot = root
	m.mu.Unlock()
}

// SetScanProgress installs a progress callback on the underlying scanner,
// used by the CLI to render scan progress.
func (m *LibraryManager) SetScanProgress(fn func(ScanProgress)) {
	m.scanner.OnProgress = fn
}

// Subscribe registers a listener notified after every completed scan.
func (m *LibraryManager) Subscribe(fn func(*types.LibrarySnapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Scan starts an asynchronous library scan. It reports false without
// disturbing the running scan if one is already in flight.
func (m *LibraryManager) Scan() bool {
	m.mu.Lock()
	if m.scanning {
		m.mu.Unlock()
		return false
	}
	m.scanning = true
	root := m.musicRoot
	m.mu.Unlock()

	go m.runScan(root)
	return true
}

// ScanSync runs a scan on the calling goroutine, with the same busy guard.
func (m *LibraryManager) ScanSync() bool {
	m.mu.Lock()
	if m.scanning {
		m.mu.Unlock()
		return false
	}
	m.scanning = true
	root := m.musicRoot
	m.mu.Unlock()

	m.runScan(root)
	return true
}

// Scanning reports whether a scan is in flight.
func (m *LibraryManager) Scanning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scanning
}

// runScan executes the pipeline and publishes the resulting snapshot. The
// guard release and listener notification are deferred so they happen even if
// a stage panics.
func (m *LibraryManager) runScan(root string) {
	started := time.Now()
	var published *types.LibrarySnapshot

	defer func() {
		m.mu.Lock()
		m.scanning = false
		listeners := make([]func(*types.LibrarySnapshot), len(m.listeners))
		copy(listeners, m.listeners)
		m.mu.Unlock()

		for _, fn := range listeners {
			fn(published)
		}
	}()

	scan := m.scanner.Scan(root)
	for _, scanErr := range scan.Errors {
		logger.Warn("scan error",
			logger.String("path", scanErr.Path),
			logger.String("kind", string(scanErr.Kind)),
			logger.String("error", scanErr.Err))
	}

	// A missing or unreadable root is transient as far as the library is
	// concerned; keep serving the previous snapshot rather than wiping it.
	if scan.RootUnavailable {
		logger.Warn("music root unavailable, keeping previous library",
			logger.String("root", root))
		published = m.snapshot.Load()
		return
	}

	records := make([]*types.SongRecord, 0, len(scan.Files))
	for _, path := range scan.Files {
		record, err := m.extractor.Extract(path)
		if err != nil {
			logger.Warn("skipping unreadable file",
				logger.String("path", path),
				logger.ErrorField(err))
			continue
		}
		records = append(records, record)
	}

	deduped, dupGroups := m.detector.Filter(records)
	if len(dupGroups) > 0 {
		logger.Info("collapsed duplicate tracks", logger.Int("groups", len(dupGroups)))
	}

	albums, standalone := m.builder.Build(deduped)

	next := &types.LibrarySnapshot{
		Albums:     albums,
		Songs:      standalone,
		SongCount:  len(deduped),
		AlbumCount: len(albums),
		ScannedAt:  time.Now(),
	}
	m.snapshot.Store(next)
	published = next

	logger.Info("library scan complete",
		logger.String("root", root),
		logger.Int("files", len(scan.Files)),
		logger.Int("songs", next.SongCount),
		logger.Int("albums", next.AlbumCount),
		logger.Duration("elapsed", time.Since(started)))
}

// Snapshot returns the current published snapshot. It never blocks and is an
// empty snapshot before the first scan completes.
func (m *LibraryManager) Snapshot() *types.LibrarySnapshot {
	return m.snapshot.Load()
}

// findSong locates a song across albums and standalone tracks.
func (m *LibraryManager) findSong(songID string) *types.SongRecord {
	snap := m.Snapshot()
	for _, song := range snap.Songs {
		if song.ID == songID {
			return song
		}
	}
	for _, album := range snap.Albums {
		for _, song := range album.Songs {
			if song.ID == songID {
				return song
			}
		}
	}
	return nil
}

// ResolveFilePath maps a song ID to its absolute file path.
func (m *LibraryManager) ResolveFilePath(songID string) (string, bool) {
	if song := m.findSong(songID); song != nil {
		return song.FilePath, true
	}
	return "", false
}

// Song returns the record for a song ID.
func (m *LibraryManager) Song(songID string) (*types.SongRecord, bool) {
	if song := m.findSong(songID); song != nil {
		return song, true
	}
	return nil, false
}

// AlbumDetail returns the album record for an album ID.
func (m *LibraryManager) AlbumDetail(albumID string) (*types.AlbumRecord, bool) {
	album, ok := m.Snapshot().Albums[albumID]
	return album, ok
}

// AlbumArtwork returns the embedded artwork bytes backing an album's cover.
func (m *LibraryManager) AlbumArtwork(albumID string) ([]byte, bool) {
	album, ok := m.Snapshot().Albums[albumID]
	if !ok || album.ArtworkPath == "" {
		return nil, false
	}
	for _, song := range album.Songs {
		if song.FilePath == album.ArtworkPath && len(song.Artwork) > 0 {
			return song.Artwork, true
		}
	}
	return nil, false
}

// SongArtwork returns a song's embedded artwork bytes.
func (m *LibraryManager) SongArtwork(songID string) ([]byte, bool) {
	song := m.findSong(songID)
	if song == nil || len(song.Artwork) == 0 {
		return nil, false
	}
	return song.Artwork, true
}

// LibraryResponse projects the current snapshot into the REST shape.
func (m *LibraryManager) LibraryResponse() types.LibraryResponse {
	snap := m.Snapshot()

	albums := make([]*types.AlbumRecord, 0, len(snap.Albums))
	for _, album := range snap.Albums {
		albums = append(albums, album)
	}
	// Map iteration order is random; keep the projection stable for clients.
	sort.Slice(albums, func(i, j int) bool {
		at := strings.ToLower(albums[i].Title)
		bt := strings.ToLower(albums[j].Title)
		if at != bt {
			return at < bt
		}
		return albums[i].ID < albums[j].ID
	})

	songs := snap.Songs
	if songs == nil {
		songs = []*types.SongRecord{}
	}

	return types.LibraryResponse{
		Albums:      albums,
		Songs:       songs,
		Playlists:   []any{},
		LastUpdated: snap.ScannedAt.Unix(),
	}
}
