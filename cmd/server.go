package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"sonora/config"
	"sonora/handlers"
	"sonora/logger"
	"sonora/middleware"
	"sonora/services"
	"sonora/types"
	"sonora/websocket"
)

// StartWebServer wires the services together and runs the HTTP server until
// it exits.
func StartWebServer(cfg *config.Config) error {
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Services
	connections := services.NewConnectionManager()
	hub := websocket.NewHub(connections)
	go hub.Run()

	library := services.NewLibraryManager(cfg.MusicRoot, cfg.FFmpegPath)
	library.Subscribe(func(snap *types.LibrarySnapshot) {
		if snap == nil {
			return
		}
		hub.Broadcast(types.NewWSMessage(types.WSLibraryUpdated, gin.H{
			"songCount":  snap.SongCount,
			"albumCount": snap.AlbumCount,
		}))
	})

	streaming := services.NewStreamingService()
	transcoder := services.NewTranscodingService(cfg.FFmpegPath, cfg.TranscodeDir, cfg.TranscodeMaxSize, cfg.TranscodeMaxAge)
	artwork := services.NewArtworkService()

	// Handlers
	healthHandler := handlers.NewHealthHandler(connections)
	sessionHandler := handlers.NewSessionHandler(connections, hub)
	libraryHandler := handlers.NewLibraryHandler(library)
	artworkHandler := handlers.NewArtworkHandler(library, artwork)
	streamHandler := handlers.NewStreamHandler(library, streaming, transcoder)

	// Background work: initial scan, filesystem watcher, periodic sweeps.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	library.Scan()
	go services.NewLibraryWatcher(library, cfg.WatcherDebounce).Run(ctx)
	go runMaintenance(ctx, cfg, connections, transcoder, hub)

	// Router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logging())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.Heartbeat(connections))

	setupRoutes(r, healthHandler, sessionHandler, libraryHandler, artworkHandler, streamHandler)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("server starting",
		logger.String("addr", addr),
		logger.String("musicRoot", cfg.MusicRoot),
		logger.Bool("transcoding", transcoder.Available()))

	return r.Run(addr)
}

// runMaintenance drives the stale-client sweep and transcode cache eviction
// on the configured cadence. It stops with the server context.
func runMaintenance(ctx context.Context, cfg *config.Config, connections *services.ConnectionManager, transcoder *services.TranscodingService, hub websocket.Hub) {
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, client := range connections.CleanupStale(cfg.HeartbeatTimeout) {
				hub.Broadcast(types.NewWSMessage(types.WSClientDisconnected, gin.H{
					"deviceId":   client.DeviceID,
					"deviceName": client.DeviceName,
				}))
			}
			transcoder.Evict()
		}
	}
}

// setupRoutes configures all HTTP routes.
func setupRoutes(r *gin.Engine, healthHandler *handlers.HealthHandler, sessionHandler *handlers.SessionHandler, libraryHandler *handlers.LibraryHandler, artworkHandler *handlers.ArtworkHandler, streamHandler *handlers.StreamHandler) {
	r.GET("/ping", healthHandler.Ping)

	r.POST("/connect", sessionHandler.Connect)
	r.POST("/disconnect", sessionHandler.Disconnect)
	r.GET("/ws", sessionHandler.HandleWebSocket)

	r.GET("/library", libraryHandler.GetLibrary)
	r.GET("/albums/:albumId", libraryHandler.GetAlbum)
	r.POST("/scan", libraryHandler.TriggerScan)
	r.GET("/settings", libraryHandler.GetSettings)
	r.POST("/settings", libraryHandler.UpdateSettings)

	r.GET("/artwork/:albumId", artworkHandler.GetAlbumArtwork)
	r.GET("/song-artwork/:songId", artworkHandler.GetSongArtwork)

	r.GET("/stream/:songId", streamHandler.Stream)
	r.GET("/download/:songId", streamHandler.Download)
}
