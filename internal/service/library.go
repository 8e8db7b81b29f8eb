package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/voyagen/worldtv/internal/models"
	"github.com/voyagen/worldtv/internal/store"
)

// ErrUnknownChannel is returned when a channel reference does not resolve
// against the current catalog.
var ErrUnknownChannel = errors.New("channel not in catalog")

// ChannelLookup resolves channels in the live catalog.
type ChannelLookup interface {
	ByID(id string) (models.Channel, bool)
	ByStreamURL(url string) (models.Channel, bool)
}

// Library serves a user's favorites and watch history. Stored entries are
// keyed by stream URL and re-resolved against the catalog on every read,
// so they survive refreshes that reassign channel ids.
type Library struct {
	store   store.Store
	catalog ChannelLookup
	logger  logrus.FieldLogger
}

// NewLibrary creates a Library.
func NewLibrary(s store.Store, c ChannelLookup, logger logrus.FieldLogger) *Library {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Library{store: s, catalog: c, logger: logger.WithField("component", "library")}
}

// Resolve finds a catalog channel by id, falling back to stream URL.
func (l *Library) Resolve(id, streamURL string) (models.Channel, error) {
	if id != "" {
		if ch, ok := l.catalog.ByID(id); ok {
			return ch, nil
		}
	}
	if streamURL != "" {
		if ch, ok := l.catalog.ByStreamURL(streamURL); ok {
			return ch, nil
		}
	}
	return models.Channel{}, ErrUnknownChannel
}

// Favorites lists the user's favorites with current catalog data.
func (l *Library) Favorites(ctx context.Context, userID string) ([]models.Favorite, error) {
	favs, err := l.store.ListFavorites(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	for i := range favs {
		favs[i].Channel, favs[i].Available = l.current(favs[i].Channel)
	}
	return favs, nil
}

// IsFavorite reports whether the stream is in the user's favorites.
func (l *Library) IsFavorite(ctx context.Context, userID, streamURL string) (bool, error) {
	return l.store.IsFavorite(ctx, userID, streamURL)
}

// AddFavorite saves ch for the user.
func (l *Library) AddFavorite(ctx context.Context, userID string, ch models.Channel) error {
	return l.store.AddFavorite(ctx, userID, ch)
}

// RemoveFavorite deletes the user's favorite for streamURL.
func (l *Library) RemoveFavorite(ctx context.Context, userID, streamURL string) error {
	return l.store.RemoveFavorite(ctx, userID, streamURL)
}

// ToggleFavorite adds or removes ch and returns whether it is now a favorite.
func (l *Library) ToggleFavorite(ctx context.Context, userID string, ch models.Channel) (bool, error) {
	err := l.store.AddFavorite(ctx, userID, ch)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, store.ErrAlreadyExists) {
		return false, err
	}
	if err := l.store.RemoveFavorite(ctx, userID, ch.StreamKey()); err != nil && !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	return false, nil
}

// Recent lists the user's recently watched channels, newest first.
func (l *Library) Recent(ctx context.Context, userID string, limit int) ([]models.WatchEntry, error) {
	entries, err := l.store.ListRecent(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	for i := range entries {
		entries[i].Channel, entries[i].Available = l.current(entries[i].Channel)
	}
	return entries, nil
}

// ClearRecent deletes the user's watch history.
func (l *Library) ClearRecent(ctx context.Context, userID string) error {
	return l.store.ClearRecent(ctx, userID)
}

// current swaps a stored snapshot for the live catalog entry. Snapshots
// whose stream left the catalog keep their stored fields and lose the id.
func (l *Library) current(stored models.Channel) (models.Channel, bool) {
	if ch, ok := l.catalog.ByStreamURL(stored.StreamKey()); ok {
		return ch, true
	}
	stored.ID = ""
	return stored, false
}
