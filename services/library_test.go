package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sonora/types"
)

// newScannedLibrary builds a manager over a fixture tree of placeholder audio
// files and runs one synchronous scan. The files carry no readable tags, so
// titles come from filenames and every record is standalone.
func newScannedLibrary(t *testing.T, files ...string) *LibraryManager {
	t.Helper()
	root := writeFiles(t, files...)
	m := NewLibraryManager(root, "")
	require.True(t, m.ScanSync())
	return m
}

func TestSnapshotEmptyBeforeFirstScan(t *testing.T) {
	m := NewLibraryManager(t.TempDir(), "")

	snap := m.Snapshot()
	require.NotNil(t, snap)
	assert.Zero(t, snap.SongCount)
	assert.Empty(t, snap.Albums)
}

func TestScanPublishesSnapshot(t *testing.T) {
	m := newScannedLibrary(t, "a.mp3", "b.flac", "notes.txt")

	snap := m.Snapshot()
	assert.Equal(t, 2, snap.SongCount)
	assert.Len(t, snap.Songs, 2)
	assert.False(t, snap.ScannedAt.IsZero())
}

func TestScanGuardIsNoOpWhileBusy(t *testing.T) {
	m := NewLibraryManager(t.TempDir(), "")

	m.mu.Lock()
	m.scanning = true
	m.mu.Unlock()

	assert.False(t, m.Scan())
	assert.False(t, m.ScanSync())

	m.mu.Lock()
	m.scanning = false
	m.mu.Unlock()
	assert.True(t, m.ScanSync())
}

func TestScanGuardReleasedAfterScan(t *testing.T) {
	m := newScannedLibrary(t, "a.mp3")
	assert.False(t, m.Scanning())
	assert.True(t, m.ScanSync(), "guard must be released after a completed scan")
}

func TestScanNotifiesListeners(t *testing.T) {
	root := writeFiles(t, "a.mp3")
	m := NewLibraryManager(root, "")

	notified := 0
	m.Subscribe(func(snap *types.LibrarySnapshot) {
		notified++
		require.NotNil(t, snap)
	})

	m.ScanSync()
	assert.Equal(t, 1, notified)
}

func TestIDsStableAcrossRescans(t *testing.T) {
	root := writeFiles(t, "x/one.mp3", "x/two.mp3")
	m := NewLibraryManager(root, "")

	require.True(t, m.ScanSync())
	first := m.Snapshot()

	require.True(t, m.ScanSync())
	second := m.Snapshot()

	firstIDs := songIDs(first.Songs)
	secondIDs := songIDs(second.Songs)
	assert.ElementsMatch(t, firstIDs, secondIDs)
}

func TestResolveFilePath(t *testing.T) {
	m := newScannedLibrary(t, "deep/track.mp3")

	snap := m.Snapshot()
	require.Len(t, snap.Songs, 1)
	song := snap.Songs[0]

	path, ok := m.ResolveFilePath(song.ID)
	require.True(t, ok)
	assert.Equal(t, song.FilePath, path)

	_, ok = m.ResolveFilePath("missing-id")
	assert.False(t, ok)
}

func TestAlbumDetailNotFound(t *testing.T) {
	m := newScannedLibrary(t, "a.mp3")
	_, ok := m.AlbumDetail("nope")
	assert.False(t, ok)
}

func TestSongArtworkAbsent(t *testing.T) {
	m := newScannedLibrary(t, "a.mp3")
	song := m.Snapshot().Songs[0]

	_, ok := m.SongArtwork(song.ID)
	assert.False(t, ok, "placeholder files carry no embedded artwork")
}

func TestLibraryResponseShape(t *testing.T) {
	m := newScannedLibrary(t, "a.mp3", "b.mp3")

	resp := m.LibraryResponse()
	assert.NotNil(t, resp.Albums)
	assert.NotNil(t, resp.Songs)
	assert.NotNil(t, resp.Playlists)
	assert.Empty(t, resp.Playlists)
	assert.Len(t, resp.Songs, 2)
	assert.NotZero(t, resp.LastUpdated)
}

func TestScanMissingRootKeepsServing(t *testing.T) {
	m := newScannedLibrary(t, "a.mp3")
	require.Equal(t, 1, m.Snapshot().SongCount)
	before := m.Snapshot()

	notified := false
	m.Subscribe(func(snap *types.LibrarySnapshot) {
		notified = true
		require.NotNil(t, snap)
	})

	m.SetMusicRoot(filepath.Join(t.TempDir(), "gone"))
	require.True(t, m.ScanSync())

	// An unavailable root must not wipe the published library; the previous
	// snapshot keeps serving and the guard is released for the next attempt.
	assert.Same(t, before, m.Snapshot())
	assert.Equal(t, 1, m.Snapshot().SongCount)
	assert.True(t, notified)
	assert.False(t, m.Scanning())
}

func TestScanEmptyRootPublishesEmptyLibrary(t *testing.T) {
	m := newScannedLibrary(t, "a.mp3")
	require.Equal(t, 1, m.Snapshot().SongCount)

	// An existing-but-empty root is a real library state, not an outage.
	m.SetMusicRoot(t.TempDir())
	require.True(t, m.ScanSync())
	assert.Zero(t, m.Snapshot().SongCount)
}

func TestSetMusicRoot(t *testing.T) {
	m := NewLibraryManager(t.TempDir(), "")
	next := t.TempDir()
	require.NoError(t, os.MkdirAll(next, 0755))

	m.SetMusicRoot(next)
	assert.Equal(t, next, m.MusicRoot())
}

func songIDs(songs []*types.SongRecord) []string {
	ids := make([]string, 0, len(songs))
	for _, s := range songs {
		ids = append(ids, s.ID)
	}
	return ids
}
