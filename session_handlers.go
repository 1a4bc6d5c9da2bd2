package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"jine-api-go/services/lyrics"

	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

// decodeBody reads a JSON body into v, capped at maxBodyBytes
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Respond(w, r).Fail(http.StatusBadRequest, "invalid JSON body: "+err.Error(), nil)
		return false
	}
	return true
}

// writeSessionError maps session lookups to 404
func writeSessionError(w http.ResponseWriter, r *http.Request, err error) bool {
	if errors.Is(err, lyrics.ErrSessionNotFound) {
		Respond(w, r).Fail(http.StatusNotFound, err.Error(), nil)
		return true
	}
	return false
}

func (s *server) createSession(w http.ResponseWriter, r *http.Request) {
	sess := s.lyrics.Sessions().Create()
	Respond(w, r).Status(http.StatusCreated, Envelope{
		Success: true,
		Data:    SessionCreatedResponse{SessionID: sess.ID, CreatedAt: sess.CreatedAt},
	})
}

func (s *server) getSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.lyrics.State(mux.Vars(r)["id"])
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	Respond(w, r).OK(state)
}

func (s *server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.lyrics.Sessions().Delete(mux.Vars(r)["id"]); err != nil {
		writeSessionError(w, r, err)
		return
	}
	Respond(w, r).NoContent()
}

// changeSong switches the session to a new song and loads its lyrics. The
// response reports whether the lyrics were applied or superseded.
func (s *server) changeSong(w http.ResponseWriter, r *http.Request) {
	var req ChangeSongRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.SongID = strings.TrimSpace(req.SongID)
	if req.SongID == "" {
		Respond(w, r).Fail(http.StatusBadRequest, "songId is required", nil)
		return
	}

	result, err := s.lyrics.ChangeSong(upstreamContext(r), mux.Vars(r)["id"], req.SongID)
	if err != nil {
		if writeSessionError(w, r, err) {
			return
		}
		s.writeUpstreamError(w, r, err, result)
		return
	}
	Respond(w, r).OK(result)
}

func (s *server) loadSessionLyrics(w http.ResponseWriter, r *http.Request) {
	var req LoadLyricsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.lyrics.LoadLyrics(mux.Vars(r)["id"], strings.TrimSpace(req.SongID), req.Lyrics)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	Respond(w, r).OK(result)
}

// updatePosition answers 200 with the new transition when the active line
// changed and 204 otherwise
func (s *server) updatePosition(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PositionMs == nil {
		Respond(w, r).Fail(http.StatusBadRequest, "positionMs is required", nil)
		return
	}

	transition, changed, err := s.lyrics.UpdatePosition(mux.Vars(r)["id"], *req.PositionMs)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	if !changed {
		Respond(w, r).NoContent()
		return
	}
	Respond(w, r).OK(transition)
}
