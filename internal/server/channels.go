package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/voyagen/worldtv/internal/cache"
	"github.com/voyagen/worldtv/internal/catalog"
	"github.com/voyagen/worldtv/internal/guide"
	"github.com/voyagen/worldtv/internal/metrics"
)

const (
	defaultFeatured = 8
	defaultGuide    = 10
)

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := catalog.Query{
		Search:   q.Get("q"),
		Country:  q.Get("country"),
		Category: q.Get("category"),
	}
	var err error
	if query.Limit, err = intParam(r, "limit", defaultLimit); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if query.Offset, err = intParam(r, "offset", 0); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if query.Limit <= 0 {
		query.Limit = defaultLimit
	}
	if query.Limit > maxLimit {
		query.Limit = maxLimit
	}
	if query.Offset < 0 {
		query.Offset = 0
	}

	channels, total := s.catalog.Filter(query)
	writeJSON(w, http.StatusOK, map[string]any{
		"channels": channels,
		"total":    total,
		"limit":    query.Limit,
		"offset":   query.Offset,
	})
}

func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ch, ok := s.catalog.ByID(id)
	if !ok {
		writeErr(w, http.StatusNotFound, fmt.Errorf("channel %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (s *Server) handleLookupChannel(w http.ResponseWriter, r *http.Request) {
	streamURL := r.URL.Query().Get("url")
	if streamURL == "" {
		writeErr(w, http.StatusBadRequest, errMissingURL)
		return
	}
	ch, ok := s.catalog.ByStreamURL(streamURL)
	if !ok {
		writeErr(w, http.StatusNotFound, fmt.Errorf("no channel streams %s", streamURL))
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (s *Server) handleFeatured(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "n", defaultFeatured)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, s.catalog.Featured(min(n, maxLimit)))
}

func (s *Server) handleFacets(w http.ResponseWriter, _ *http.Request) {
	snap := s.catalog.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"countries":  nonNil(snap.Countries),
		"categories": nonNil(snap.Categories),
	})
}

func (s *Server) handleListSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Sources())
}

func (s *Server) handleGuide(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "n", defaultGuide)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	channels := s.catalog.Featured(min(n, maxLimit))
	writeJSON(w, http.StatusOK, guide.Build(channels, time.Now()))
}

// handleRefresh starts a catalog refresh in the background. Requests are
// rate limited, and with Redis configured only one replica refreshes at a
// time.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		metrics.CatalogRefreshes.WithLabelValues("throttled").Inc()
		writeErr(w, http.StatusTooManyRequests, errors.New("catalog refresh rate limit exceeded"))
		return
	}
	select {
	case s.refreshes <- struct{}{}:
	default:
		writeErr(w, http.StatusConflict, errRefreshRunning)
		return
	}

	unlock := func() {}
	if s.redis != nil {
		u, err := cache.TryLock(r.Context(), s.redis, cache.RefreshLockKey, refreshLockTTL)
		if err != nil {
			<-s.refreshes
			if errors.Is(err, cache.ErrLocked) {
				writeErr(w, http.StatusConflict, errRefreshRunning)
				return
			}
			writeErr(w, http.StatusServiceUnavailable, err)
			return
		}
		unlock = u
	}

	go func() {
		defer func() { <-s.refreshes }()
		defer unlock()
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		snap := s.catalog.Refresh(ctx)
		s.logger.WithField("channels", len(snap.Channels)).Info("Manual catalog refresh finished")
	}()

	snap := s.catalog.Snapshot()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":   "refreshing",
		"channels": len(snap.Channels),
		"sources":  len(s.catalog.Sources()),
	})
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", name, v)
	}
	return n, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
