package types

// APIError is the consistent error envelope for all REST failures.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError as returned to clients.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Stable error codes surfaced by the REST layer.
const (
	CodeSongNotFound    = "SONG_NOT_FOUND"
	CodeAlbumNotFound   = "ALBUM_NOT_FOUND"
	CodeArtworkNotFound = "ARTWORK_NOT_FOUND"
	CodeFileNotFound    = "FILE_NOT_FOUND"
	CodeForbidden       = "FORBIDDEN"
	CodeBadRequest      = "BAD_REQUEST"
)

// PingResponse answers GET /ping.
type PingResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
	Server    string `json:"server"`
	Version   string `json:"version"`
}

// ConnectRequest is the body of POST /connect.
type ConnectRequest struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
}

// ConnectResponse answers POST /connect.
type ConnectResponse struct {
	Status        string   `json:"status"`
	SessionID     string   `json:"sessionId"`
	ServerVersion string   `json:"serverVersion"`
	Features      []string `json:"features"`
}

// DisconnectRequest is the body of POST /disconnect.
type DisconnectRequest struct {
	DeviceID string `json:"deviceId"`
}

// DisconnectResponse answers POST /disconnect.
type DisconnectResponse struct {
	Status   string `json:"status"`
	DeviceID string `json:"deviceId"`
}

// LibraryResponse is the full library projection for GET /library. Playlists
// are owned by an external collaborator and always serialize as an empty array.
type LibraryResponse struct {
	Albums      []*AlbumRecord `json:"albums"`
	Songs       []*SongRecord  `json:"songs"`
	Playlists   []any          `json:"playlists"`
	LastUpdated int64          `json:"lastUpdated"`
}

// SettingsResponse answers GET /settings.
type SettingsResponse struct {
	MusicRoot string `json:"musicRoot"`
}

// SettingsRequest is the body of POST /settings.
type SettingsRequest struct {
	MusicRoot string `json:"musicRoot"`
}
