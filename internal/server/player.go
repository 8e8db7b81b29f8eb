package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/voyagen/worldtv/internal/player"
)

// anonymousUser owns the player for requests without a user header.
const anonymousUser = "anonymous"

type playerResponse struct {
	player.Snapshot
	Overlay bool `json:"overlay"`
}

func playerJSON(s *player.Session) playerResponse {
	snap := s.Snapshot()
	return playerResponse{Snapshot: snap, Overlay: snap.Overlay()}
}

func playerUser(r *http.Request) string {
	if id := r.Header.Get(UserHeader); id != "" {
		return id
	}
	return anonymousUser
}

// current returns the caller's open session, if any. It never creates a
// manager; only opening a channel does.
func (s *Server) current(r *http.Request) *player.Session {
	m, ok := s.players.Lookup(playerUser(r))
	if !ok {
		return nil
	}
	return m.Current()
}

func (s *Server) handlePlayerState(w http.ResponseWriter, r *http.Request) {
	sess := s.current(r)
	if sess == nil {
		writeErr(w, http.StatusNotFound, errors.New("no open session"))
		return
	}
	writeJSON(w, http.StatusOK, playerJSON(sess))
}

func (s *Server) handlePlayerOpen(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.decodeRef(w, r)
	if !ok {
		return
	}
	ch, err := s.library.Resolve(ref.ID, ref.URL)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	sess, err := s.players.For(playerUser(r)).Open(ch)
	if err != nil {
		writePlayerErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playerJSON(sess))
}

func (s *Server) handlePlayerAction(w http.ResponseWriter, r *http.Request) {
	action := r.PathValue("action")
	if action == "close" {
		s.players.Release(playerUser(r))
		writeNoContent(w)
		return
	}

	sess := s.current(r)
	if sess == nil {
		writeErr(w, http.StatusConflict, player.ErrNotStarted)
		return
	}
	var err error
	switch action {
	case "toggle-play":
		err = sess.TogglePlay()
	case "toggle-mute":
		err = sess.ToggleMute()
	case "retry":
		err = sess.Retry()
	case "activity":
		sess.Activity()
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("unknown player action %q", action))
		return
	}
	if err != nil {
		writePlayerErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playerJSON(sess))
}

func writePlayerErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, player.ErrClosed), errors.Is(err, player.ErrNotInError), errors.Is(err, player.ErrNotStarted):
		writeErr(w, http.StatusConflict, err)
	default:
		writeErr(w, http.StatusInternalServerError, err)
	}
}
