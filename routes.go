package main

import (
	"net/http"
	"strings"

	"jine-api-go/middleware"

	"github.com/gorilla/mux"
)

// setupRoutes configures all HTTP routes for the API
func (s *server) setupRoutes(router *mux.Router) {
	// Metadata, served through the response cache
	router.HandleFunc("/search", s.searchAll).Methods(http.MethodGet)
	router.HandleFunc("/search/songs", s.searchSongs).Methods(http.MethodGet)
	router.HandleFunc("/search/albums", s.searchAlbums).Methods(http.MethodGet)
	router.HandleFunc("/search/playlists", s.searchPlaylists).Methods(http.MethodGet)
	router.HandleFunc("/songs/{id}", s.getSong).Methods(http.MethodGet)
	router.HandleFunc("/songs/{id}/lyrics", s.getSongLyrics).Methods(http.MethodGet)
	router.HandleFunc("/albums/{id}", s.getAlbum).Methods(http.MethodGet)
	router.HandleFunc("/playlists/{id}", s.getPlaylist).Methods(http.MethodGet)
	router.HandleFunc("/modules", s.getModules).Methods(http.MethodGet)

	// Lyrics sessions
	router.HandleFunc("/sessions", s.createSession).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}", s.getSession).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{id}", s.deleteSession).Methods(http.MethodDelete)
	router.HandleFunc("/sessions/{id}/song", s.changeSong).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}/lyrics", s.loadSessionLyrics).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}/position", s.updatePosition).Methods(http.MethodPost)

	// Liked items
	router.HandleFunc("/likes/songs", s.listLikedSongs).Methods(http.MethodGet)
	router.HandleFunc("/likes/songs", s.likeSong).Methods(http.MethodPost)
	router.HandleFunc("/likes/songs", s.unlikeSong).Methods(http.MethodDelete)
	router.HandleFunc("/likes/songs/check", s.checkLikedSong).Methods(http.MethodGet)
	router.HandleFunc("/likes/playlists", s.listLikedPlaylists).Methods(http.MethodGet)
	router.HandleFunc("/likes/playlists", s.likePlaylist).Methods(http.MethodPost)
	router.HandleFunc("/likes/albums", s.listLikedAlbums).Methods(http.MethodGet)
	router.HandleFunc("/likes/albums", s.likeAlbum).Methods(http.MethodPost)
	router.HandleFunc("/likes/stats", s.getLikesStats).Methods(http.MethodGet)

	// Admin endpoints, API key required
	admin := router.NewRoute().Subrouter()
	admin.Use(middleware.APIKeyMiddleware(s.adminKey))
	admin.HandleFunc("/cache", s.getCacheDump).Methods(http.MethodGet)
	admin.HandleFunc("/cache/stats", s.getCacheStats).Methods(http.MethodGet)
	admin.HandleFunc("/cache/invalidate", s.invalidateCache).Methods(http.MethodPost)
	admin.HandleFunc("/likes/backup", s.backupLikes).Methods(http.MethodPost)
	admin.HandleFunc("/likes/backups", s.listLikesBackups).Methods(http.MethodGet)
	admin.HandleFunc("/likes", s.clearLikes).Methods(http.MethodDelete)
	admin.HandleFunc("/circuit-breaker", s.getCircuitBreakerStatus).Methods(http.MethodGet)
	admin.HandleFunc("/circuit-breaker/reset", s.resetCircuitBreaker).Methods(http.MethodPost)
	admin.HandleFunc("/events", s.getRecentEvents).Methods(http.MethodGet)

	// Health and stats endpoints
	router.HandleFunc("/health", s.getHealthStatus).Methods(http.MethodGet)
	router.HandleFunc("/stats", s.getStats).Methods(http.MethodGet)

	// Help endpoint
	router.HandleFunc("/", helpHandler).Methods(http.MethodGet)
}

// requestGroup maps a request to its stats bucket
func requestGroup(r *http.Request) string {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/songs/") && strings.HasSuffix(path, "/lyrics"):
		return "lyrics"
	case path == "/search" || strings.HasPrefix(path, "/search/"),
		strings.HasPrefix(path, "/songs/"),
		strings.HasPrefix(path, "/albums/"),
		strings.HasPrefix(path, "/playlists/"),
		path == "/modules":
		return "metadata"
	case strings.HasPrefix(path, "/sessions"):
		return "session"
	case path == "/likes/backup" || path == "/likes/backups" || path == "/likes":
		return "admin"
	case strings.HasPrefix(path, "/likes/"):
		return "likes"
	case strings.HasPrefix(path, "/cache"),
		strings.HasPrefix(path, "/circuit-breaker"),
		path == "/events":
		return "admin"
	default:
		return "other"
	}
}
