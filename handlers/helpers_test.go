package handlers

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"sonora/services"
	"sonora/websocket"
)

// testEnv wires a full router over a scanned fixture library, mirroring the
// production wiring minus the watcher and maintenance loops.
type testEnv struct {
	router      *gin.Engine
	library     *services.LibraryManager
	connections *services.ConnectionManager
	transcoder  *services.TranscodingService
	hub         websocket.Hub
	musicRoot   string
}

// fixtureSong describes one tagged file in the test library.
type fixtureSong struct {
	path   string
	title  string
	artist string
	album  string
	track  int
	art    []byte
}

func newTestEnv(t *testing.T, songs []fixtureSong) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	for _, s := range songs {
		full := filepath.Join(root, filepath.FromSlash(s.path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		writeTaggedMP3(t, full, s)
	}

	connections := services.NewConnectionManager()
	hub := websocket.NewHub(connections)
	go hub.Run()

	library := services.NewLibraryManager(root, "")
	require.True(t, library.ScanSync())

	streaming := services.NewStreamingService()
	transcoder := services.NewTranscodingService("", t.TempDir(), 0, 0)
	artwork := services.NewArtworkService()

	r := gin.New()
	r.GET("/ping", NewHealthHandler(connections).Ping)

	session := NewSessionHandler(connections, hub)
	r.POST("/connect", session.Connect)
	r.POST("/disconnect", session.Disconnect)
	r.GET("/ws", session.HandleWebSocket)

	lib := NewLibraryHandler(library)
	r.GET("/library", lib.GetLibrary)
	r.GET("/albums/:albumId", lib.GetAlbum)
	r.POST("/scan", lib.TriggerScan)
	r.GET("/settings", lib.GetSettings)
	r.POST("/settings", lib.UpdateSettings)

	art := NewArtworkHandler(library, artwork)
	r.GET("/artwork/:albumId", art.GetAlbumArtwork)
	r.GET("/song-artwork/:songId", art.GetSongArtwork)

	stream := NewStreamHandler(library, streaming, transcoder)
	r.GET("/stream/:songId", stream.Stream)
	r.GET("/download/:songId", stream.Download)

	return &testEnv{
		router:      r,
		library:     library,
		connections: connections,
		transcoder:  transcoder,
		hub:         hub,
		musicRoot:   root,
	}
}

// do performs one request against the env's router.
func (e *testEnv) do(method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// songIDByTitle resolves a fixture song's ID from the published snapshot.
func (e *testEnv) songIDByTitle(t *testing.T, title string) string {
	t.Helper()
	snap := e.library.Snapshot()
	for _, s := range snap.Songs {
		if s.Title == title {
			return s.ID
		}
	}
	for _, album := range snap.Albums {
		for _, s := range album.Songs {
			if s.Title == title {
				return s.ID
			}
		}
	}
	t.Fatalf("song %q not found in snapshot", title)
	return ""
}

// smallPNG renders a square test image.
func smallPNG(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{R: 30, G: 30, B: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// The fixture writer emits a minimal ID3v2.3 tag followed by filler bytes
// standing in for the audio frames.

func id3Frame(id string, payload []byte) []byte {
	out := make([]byte, 0, 10+len(payload))
	out = append(out, id...)
	n := len(payload)
	out = append(out, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	out = append(out, 0, 0)
	return append(out, payload...)
}

func id3TextFrame(id, value string) []byte {
	// Encoding 0x00 (ISO-8859-1) with UTF-8 bytes in the payload reproduces
	// the mojibake the extractor's repair step handles.
	return id3Frame(id, append([]byte{0}, []byte(value)...))
}

func id3PictureFrame(img []byte) []byte {
	payload := []byte{0}
	payload = append(payload, "image/png"...)
	payload = append(payload, 0)
	payload = append(payload, 3) // front cover
	payload = append(payload, 0) // empty description
	payload = append(payload, img...)
	return id3Frame("APIC", payload)
}

func writeTaggedMP3(t *testing.T, path string, s fixtureSong) {
	t.Helper()

	var frames []byte
	frames = append(frames, id3TextFrame("TIT2", s.title)...)
	if s.artist != "" {
		frames = append(frames, id3TextFrame("TPE1", s.artist)...)
	}
	if s.album != "" {
		frames = append(frames, id3TextFrame("TALB", s.album)...)
	}
	if s.track > 0 {
		frames = append(frames, id3TextFrame("TRCK", strconv.Itoa(s.track))...)
	}
	if s.art != nil {
		frames = append(frames, id3PictureFrame(s.art)...)
	}

	size := len(frames)
	header := []byte{
		'I', 'D', '3', 3, 0, 0,
		byte(size>>21) & 0x7f,
		byte(size>>14) & 0x7f,
		byte(size>>7) & 0x7f,
		byte(size) & 0x7f,
	}

	content := append(header, frames...)
	content = append(content, bytes.Repeat([]byte{0xAA}, 1000)...)
	require.NoError(t, os.WriteFile(path, content, 0644))
}

// albumFixture is the default two-track album plus one standalone song.
func albumFixture(t *testing.T) []fixtureSong {
	return []fixtureSong{
		{path: "Aurora/First Light/01.mp3", title: "Dawn", artist: "Aurora", album: "First Light", track: 1, art: smallPNG(t, 600)},
		{path: "Aurora/First Light/02.mp3", title: "Noon", artist: "Aurora", album: "First Light", track: 2},
		{path: "Singles/lone.mp3", title: "Lone Wolf", artist: "Drifter"},
	}
}
