package store

import (
	"context"
	"errors"
	"time"

	"github.com/voyagen/worldtv/internal/models"
)

var (
	// ErrNotFound is returned when a user list has no entry for a stream.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a favorite is added twice.
	ErrAlreadyExists = errors.New("already exists")
)

// DefaultRecentLimit is the number of recently watched entries returned
// when the caller passes a non-positive limit.
const DefaultRecentLimit = 10

// Store persists per-user favorites and watch history. Entries are keyed
// by (user, stream URL); the per-run channel id is never stored as a key.
type Store interface {
	// IsFavorite reports whether the user has favorited the stream.
	IsFavorite(ctx context.Context, userID, streamURL string) (bool, error)
	// AddFavorite stores a channel snapshot. Returns ErrAlreadyExists on duplicates.
	AddFavorite(ctx context.Context, userID string, ch models.Channel) error
	// RemoveFavorite deletes a favorite. Returns ErrNotFound if absent.
	RemoveFavorite(ctx context.Context, userID, streamURL string) error
	// ListFavorites returns the user's favorites, newest first.
	ListFavorites(ctx context.Context, userID string) ([]models.Favorite, error)

	// RecordWatch upserts a watch entry opened at at. An entry never moves
	// back in time when an older event arrives late.
	RecordWatch(ctx context.Context, userID string, ch models.Channel, at time.Time) error
	// ListRecent returns at most limit entries, most recently watched first.
	ListRecent(ctx context.Context, userID string, limit int) ([]models.WatchEntry, error)
	// ClearRecent deletes the user's watch history.
	ClearRecent(ctx context.Context, userID string) error
}

func recentLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	if limit > 100 {
		return 100
	}
	return limit
}
