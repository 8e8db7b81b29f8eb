package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/voyagen/worldtv/internal/models"
)

// Memory implements Store in process memory. It is used when no database
// is configured and loses everything on restart.
type Memory struct {
	mu        sync.Mutex
	now       func() time.Time
	seq       uint64
	favorites map[string]map[string]memEntry
	recent    map[string]map[string]memEntry
}

type memEntry struct {
	ch  models.Channel
	at  time.Time
	seq uint64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		now:       time.Now,
		favorites: make(map[string]map[string]memEntry),
		recent:    make(map[string]map[string]memEntry),
	}
}

func (m *Memory) IsFavorite(_ context.Context, userID, streamURL string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.favorites[userID][streamURL]
	return ok, nil
}

func (m *Memory) AddFavorite(_ context.Context, userID string, ch models.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ch.StreamKey()
	if _, ok := m.favorites[userID][key]; ok {
		return ErrAlreadyExists
	}
	m.put(m.favorites, userID, ch, m.now())
	return nil
}

func (m *Memory) RemoveFavorite(_ context.Context, userID, streamURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.favorites[userID][streamURL]; !ok {
		return ErrNotFound
	}
	delete(m.favorites[userID], streamURL)
	return nil
}

func (m *Memory) ListFavorites(_ context.Context, userID string) ([]models.Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := sorted(m.favorites[userID])
	out := make([]models.Favorite, 0, len(entries))
	for _, e := range entries {
		at := e.at
		out = append(out, models.Favorite{UserID: userID, Channel: e.ch, CreatedAt: &at})
	}
	return out, nil
}

func (m *Memory) RecordWatch(_ context.Context, userID string, ch models.Channel, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if at.IsZero() {
		at = m.now()
	}
	if prev, ok := m.recent[userID][ch.StreamKey()]; ok && prev.at.After(at) {
		at = prev.at
	}
	m.put(m.recent, userID, ch, at)
	return nil
}

func (m *Memory) ListRecent(_ context.Context, userID string, limit int) ([]models.WatchEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := sorted(m.recent[userID])
	if n := recentLimit(limit); len(entries) > n {
		entries = entries[:n]
	}
	out := make([]models.WatchEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.WatchEntry{UserID: userID, Channel: e.ch, WatchedAt: e.at})
	}
	return out, nil
}

func (m *Memory) ClearRecent(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recent, userID)
	return nil
}

func (m *Memory) put(lists map[string]map[string]memEntry, userID string, ch models.Channel, at time.Time) {
	list, ok := lists[userID]
	if !ok {
		list = make(map[string]memEntry)
		lists[userID] = list
	}
	m.seq++
	list[ch.StreamKey()] = memEntry{ch: ch, at: at.UTC(), seq: m.seq}
}

// sorted returns entries newest first, ties broken by write order.
func sorted(list map[string]memEntry) []memEntry {
	out := make([]memEntry, 0, len(list))
	for _, e := range list {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].at.Equal(out[j].at) {
			return out[i].at.After(out[j].at)
		}
		return out[i].seq > out[j].seq
	})
	return out
}
