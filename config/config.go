package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration. Values come from the
// environment (optionally seeded by a .env file) with sensible defaults.
type Config struct {
	MusicRoot        string
	Port             int
	CORSOrigins      string
	FFmpegPath       string
	TranscodeDir     string // cache directory for completed transcodes
	TranscodeMaxSize int64  // total cache size in bytes before eviction
	TranscodeMaxAge  time.Duration
	HeartbeatTimeout time.Duration // staleness threshold for connected clients
	CleanupInterval  time.Duration // cadence of the stale-client sweep
	WatcherDebounce  time.Duration // quiet period before a change triggers a rescan
	LogPath          string
	LogLevel         string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvDuration gets an environment variable as a duration or returns a
// default value.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// defaultMusicRoot returns an OS-appropriate music folder.
func defaultMusicRoot() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "music")
	}
	return filepath.Join(homeDir, "Music")
}

// Load loads configuration from environment variables (via .env file) or
// defaults. godotenv will not override variables already set in the
// environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables and defaults.")
	}

	return &Config{
		MusicRoot:        getEnv("MUSIC_ROOT", defaultMusicRoot()),
		Port:             getEnvInt("PORT", 8080),
		CORSOrigins:      getEnv("CORS_ORIGINS", "*"),
		FFmpegPath:       getEnv("FFMPEG_PATH", "ffmpeg"),
		TranscodeDir:     getEnv("TRANSCODE_CACHE_DIR", filepath.Join(os.TempDir(), "sonora-transcode")),
		TranscodeMaxSize: int64(getEnvInt("TRANSCODE_CACHE_MAX_MB", 512)) * 1024 * 1024,
		TranscodeMaxAge:  getEnvDuration("TRANSCODE_CACHE_MAX_AGE", 7*24*time.Hour),
		HeartbeatTimeout: getEnvDuration("HEARTBEAT_TIMEOUT", 90*time.Second),
		CleanupInterval:  getEnvDuration("CLEANUP_INTERVAL", 30*time.Second),
		WatcherDebounce:  getEnvDuration("WATCHER_DEBOUNCE", 2*time.Second),
		LogPath:          getEnv("LOG_PATH", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
}
