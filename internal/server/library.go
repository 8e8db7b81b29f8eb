package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/voyagen/worldtv/internal/service"
	"github.com/voyagen/worldtv/internal/store"
)

// UserHeader carries the caller's identity. Authentication happens upstream.
const UserHeader = "X-User-ID"

type userKey struct{}

var (
	errMissingUser    = fmt.Errorf("%s header is required", UserHeader)
	errMissingURL     = errors.New("url is required")
	errRefreshRunning = errors.New("catalog refresh already in progress")
)

// requireUser rejects requests without a user id and stores it in the context.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(UserHeader)
		if id == "" {
			writeErr(w, http.StatusUnauthorized, errMissingUser)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, id)))
	}
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userKey{}).(string)
	return id
}

// channelRef identifies a catalog channel by per-run id or stream URL.
type channelRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (s *Server) decodeRef(w http.ResponseWriter, r *http.Request) (channelRef, bool) {
	var ref channelRef
	if err := json.NewDecoder(r.Body).Decode(&ref); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return ref, false
	}
	if ref.ID == "" && ref.URL == "" {
		writeErr(w, http.StatusBadRequest, errors.New("id or url is required"))
		return ref, false
	}
	return ref, true
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	favs, err := s.library.Favorites(r.Context(), userID(r))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, favs)
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.decodeRef(w, r)
	if !ok {
		return
	}
	ch, err := s.library.Resolve(ref.ID, ref.URL)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	if err := s.library.AddFavorite(r.Context(), userID(r), ch); err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ch)
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.decodeRef(w, r)
	if !ok {
		return
	}
	ch, err := s.library.Resolve(ref.ID, ref.URL)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	fav, err := s.library.ToggleFavorite(r.Context(), userID(r), ch)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": ch.URL, "favorite": fav})
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	streamURL := r.URL.Query().Get("url")
	if streamURL == "" {
		writeErr(w, http.StatusBadRequest, errMissingURL)
		return
	}
	if err := s.library.RemoveFavorite(r.Context(), userID(r), streamURL); err != nil {
		writeStoreErr(w, err)
		return
	}
	writeNoContent(w)
}

func (s *Server) handleCheckFavorite(w http.ResponseWriter, r *http.Request) {
	streamURL := r.URL.Query().Get("url")
	if streamURL == "" {
		writeErr(w, http.StatusBadRequest, errMissingURL)
		return
	}
	fav, err := s.library.IsFavorite(r.Context(), userID(r), streamURL)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": streamURL, "favorite": fav})
}

func (s *Server) handleListRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", store.DefaultRecentLimit)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	entries, err := s.library.Recent(r.Context(), userID(r), limit)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleClearRecent(w http.ResponseWriter, r *http.Request) {
	if err := s.library.ClearRecent(r.Context(), userID(r)); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeNoContent(w)
}

func writeStoreErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, service.ErrUnknownChannel):
		writeErr(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrAlreadyExists):
		writeErr(w, http.StatusConflict, err)
	default:
		writeErr(w, http.StatusInternalServerError, err)
	}
}
