package main

import (
	"errors"
	"net/http"

	"jine-api-go/likes"
	"jine-api-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// writeLikesError maps likes store failures to responses
func writeLikesError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, likes.ErrInvalidItem) {
		Respond(w, r).Fail(http.StatusBadRequest, err.Error(), nil)
		return
	}
	log.Errorf("%s %v", logcolors.LogLikes, err)
	Respond(w, r).Fail(http.StatusInternalServerError, "likes store error", nil)
}

func (s *server) listLikedSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.likes.Songs()
	if err != nil {
		writeLikesError(w, r, err)
		return
	}
	Respond(w, r).OK(songs)
}

// likeSong answers 201 when the song was stored and 200 when it was already
// liked
func (s *server) likeSong(w http.ResponseWriter, r *http.Request) {
	var song likes.Song
	if !decodeBody(w, r, &song) {
		return
	}
	added, err := s.likes.AddSong(song)
	if err != nil {
		writeLikesError(w, r, err)
		return
	}
	writeLikeResult(w, r, added)
}

func (s *server) unlikeSong(w http.ResponseWriter, r *http.Request) {
	title, artist := r.URL.Query().Get("title"), r.URL.Query().Get("artist")
	if title == "" || artist == "" {
		var song likes.Song
		if !decodeBody(w, r, &song) {
			return
		}
		title, artist = song.Title, song.Artist
	}

	removed, err := s.likes.RemoveSong(title, artist)
	if err != nil {
		writeLikesError(w, r, err)
		return
	}
	if !removed {
		Respond(w, r).Fail(http.StatusNotFound, "song is not liked", nil)
		return
	}
	Respond(w, r).NoContent()
}

func (s *server) checkLikedSong(w http.ResponseWriter, r *http.Request) {
	liked, err := s.likes.IsSongLiked(r.URL.Query().Get("title"), r.URL.Query().Get("artist"))
	if err != nil {
		writeLikesError(w, r, err)
		return
	}
	Respond(w, r).OK(LikedCheckResponse{Liked: liked})
}

func (s *server) listLikedPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := s.likes.Playlists()
	if err != nil {
		writeLikesError(w, r, err)
		return
	}
	Respond(w, r).OK(playlists)
}

func (s *server) likePlaylist(w http.ResponseWriter, r *http.Request) {
	var playlist likes.Playlist
	if !decodeBody(w, r, &playlist) {
		return
	}
	added, err := s.likes.AddPlaylist(playlist)
	if err != nil {
		writeLikesError(w, r, err)
		return
	}
	writeLikeResult(w, r, added)
}

func (s *server) listLikedAlbums(w http.ResponseWriter, r *http.Request) {
	albums, err := s.likes.Albums()
	if err != nil {
		writeLikesError(w, r, err)
		return
	}
	Respond(w, r).OK(albums)
}

func (s *server) likeAlbum(w http.ResponseWriter, r *http.Request) {
	var album likes.Album
	if !decodeBody(w, r, &album) {
		return
	}
	added, err := s.likes.AddAlbum(album)
	if err != nil {
		writeLikesError(w, r, err)
		return
	}
	writeLikeResult(w, r, added)
}

func (s *server) getLikesStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.likes.Stats()
	if err != nil {
		writeLikesError(w, r, err)
		return
	}
	Respond(w, r).OK(st)
}

func writeLikeResult(w http.ResponseWriter, r *http.Request, added bool) {
	status := http.StatusOK
	message := "already liked"
	if added {
		status = http.StatusCreated
		message = ""
	}
	Respond(w, r).Status(status, Envelope{
		Success: true,
		Message: message,
		Data:    LikeResponse{Added: added},
	})
}
