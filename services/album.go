package services

import (
	"sort"
	"strings"

	"sonora/types"
)

// trackSortSentinel pushes songs without a track number to the end of an
// album's ordering.
const trackSortSentinel = 1 << 30

// AlbumBuilder partitions deduplicated songs into albums and standalone
// tracks.
type AlbumBuilder struct {
	makeAlbumID func(title, artist string) string
}

// NewAlbumBuilder creates a builder using the given album ID derivation.
func NewAlbumBuilder(makeAlbumID func(title, artist string) string) *AlbumBuilder {
	return &AlbumBuilder{makeAlbumID: makeAlbumID}
}

// albumArtist picks the grouping artist for a song, preferring the
// album-artist tag over the track artist.
func albumArtist(s *types.SongRecord) string {
	if s.AlbumArtist != "" {
		return s.AlbumArtist
	}
	return s.Artist
}

// groupKey is the (album title, album artist) grouping key, case-insensitive.
func groupKey(s *types.SongRecord) string {
	return strings.ToLower(s.Album) + "\x00" + strings.ToLower(albumArtist(s))
}

// Build produces the albums map and standalone song list for a snapshot.
// Songs without album metadata are standalone. Groups of exactly one song are
// demoted to standalone rather than surfaced as one-song albums.
func (b *AlbumBuilder) Build(songs []*types.SongRecord) (map[string]*types.AlbumRecord, []*types.SongRecord) {
	groups := make(map[string][]*types.SongRecord)
	var order []string
	var standalone []*types.SongRecord

	for _, song := range songs {
		if song.Album == "" {
			standalone = append(standalone, song)
			continue
		}
		key := groupKey(song)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], song)
	}

	albums := make(map[string]*types.AlbumRecord)
	for _, key := range order {
		group := groups[key]
		if len(group) < 2 {
			standalone = append(standalone, group...)
			continue
		}

		sort.SliceStable(group, func(i, j int) bool {
			return sortTrack(group[i]) < sortTrack(group[j])
		})

		first := group[0]
		album := &types.AlbumRecord{
			ID:     b.makeAlbumID(first.Album, albumArtist(first)),
			Title:  first.Album,
			Artist: albumArtist(first),
			Songs:  group,
		}

		for _, song := range group {
			if len(song.Artwork) > 0 {
				album.ArtworkPath = song.FilePath
				break
			}
		}

		albums[album.ID] = album
	}

	return albums, standalone
}

// sortTrack returns the sort key for a song within its album.
func sortTrack(s *types.SongRecord) int {
	if s.TrackNumber <= 0 {
		return trackSortSentinel
	}
	return s.TrackNumber
}
