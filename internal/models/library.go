package models

import "time"

// Favorite is a user's saved channel, keyed by stream URL.
type Favorite struct {
	UserID    string     `json:"user_id"`
	Channel   Channel    `json:"channel"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	// Available is set when the stream is in the current catalog.
	Available bool `json:"available"`
}

// WatchEntry is one row of a user's recently-watched list.
type WatchEntry struct {
	UserID    string    `json:"user_id"`
	Channel   Channel   `json:"channel"`
	WatchedAt time.Time `json:"watched_at"`
	Available bool      `json:"available"`
}

// Program is a synthetic guide slot. There is no live EPG source.
type Program struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Live  bool      `json:"live"`
	Past  bool      `json:"past"`
}
