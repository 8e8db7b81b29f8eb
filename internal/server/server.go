package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/voyagen/worldtv/internal/cache"
	"github.com/voyagen/worldtv/internal/catalog"
	"github.com/voyagen/worldtv/internal/player"
	"github.com/voyagen/worldtv/internal/service"
)

const (
	defaultLimit = 50
	maxLimit     = 200

	refreshLockTTL = 5 * time.Minute
	refreshTimeout = 4 * time.Minute
)

// Deps are the collaborators the HTTP API serves from. Redis may be nil.
type Deps struct {
	Catalog *catalog.Catalog
	Library *service.Library
	Players *player.Registry
	Redis   *cache.Redis
	Logger  logrus.FieldLogger
	// RefreshLimit bounds manual catalog refreshes; zero uses one per minute.
	RefreshLimit rate.Limit
}

// Server holds dependencies for the HTTP API.
type Server struct {
	catalog *catalog.Catalog
	library *service.Library
	players *player.Registry
	redis   *cache.Redis
	logger  logrus.FieldLogger
	limiter *rate.Limiter
	mux     *http.ServeMux

	// refreshes admits one background refresh per process.
	refreshes chan struct{}
}

// New creates a Server and registers routes.
func New(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	limit := d.RefreshLimit
	if limit == 0 {
		limit = rate.Every(time.Minute)
	}
	srv := &Server{
		catalog:   d.Catalog,
		library:   d.Library,
		players:   d.Players,
		redis:     d.Redis,
		logger:    logger.WithField("component", "http"),
		limiter:   rate.NewLimiter(limit, 1),
		mux:       http.NewServeMux(),
		refreshes: make(chan struct{}, 1),
	}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// Catalog
	s.mux.HandleFunc("GET /api/channels", s.handleListChannels)
	s.mux.HandleFunc("GET /api/channels/lookup", s.handleLookupChannel)
	s.mux.HandleFunc("GET /api/channels/featured", s.handleFeatured)
	s.mux.HandleFunc("GET /api/channels/{id}", s.handleGetChannel)
	s.mux.HandleFunc("GET /api/facets", s.handleFacets)
	s.mux.HandleFunc("GET /api/sources", s.handleListSources)
	s.mux.HandleFunc("POST /api/catalog/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /api/guide", s.handleGuide)

	// User lists
	s.mux.HandleFunc("GET /api/favorites", s.requireUser(s.handleListFavorites))
	s.mux.HandleFunc("POST /api/favorites", s.requireUser(s.handleAddFavorite))
	s.mux.HandleFunc("DELETE /api/favorites", s.requireUser(s.handleRemoveFavorite))
	s.mux.HandleFunc("GET /api/favorites/check", s.requireUser(s.handleCheckFavorite))
	s.mux.HandleFunc("POST /api/favorites/toggle", s.requireUser(s.handleToggleFavorite))
	s.mux.HandleFunc("GET /api/recent", s.requireUser(s.handleListRecent))
	s.mux.HandleFunc("DELETE /api/recent", s.requireUser(s.handleClearRecent))

	// Player
	s.mux.HandleFunc("GET /api/player", s.handlePlayerState)
	s.mux.HandleFunc("POST /api/player/open", s.handlePlayerOpen)
	s.mux.HandleFunc("POST /api/player/{action}", s.handlePlayerAction)

	// Ops
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /api/docs", handleSwaggerUI)
	s.mux.HandleFunc("GET /api/docs/openapi.yaml", handleOpenAPISpec)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Handler returns the routes wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	return withCORS(withLogging(s.logger, s))
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Warn("Server shutdown failed")
		}
	}()

	s.logger.WithField("addr", addr).Info("Listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.Snapshot()
	body := map[string]any{
		"status":   "ok",
		"channels": len(snap.Channels),
	}
	if !snap.LoadedAt.IsZero() {
		body["loaded_at"] = snap.LoadedAt
	}
	refreshing := len(s.refreshes) > 0
	if s.redis != nil {
		if err := s.redis.Ping(r.Context()); err != nil {
			body["status"] = "degraded"
			body["redis"] = err.Error()
		} else if cache.IsLocked(r.Context(), s.redis, cache.RefreshLockKey) {
			refreshing = true
		}
	}
	body["refreshing"] = refreshing
	writeJSON(w, http.StatusOK, body)
}
