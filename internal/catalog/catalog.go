package catalog

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voyagen/worldtv/internal/metrics"
	"github.com/voyagen/worldtv/internal/models"
)

// All is the filter value meaning "no filter".
const All = "all"

// Snapshot is one immutable catalog build. Channels is rebuilt wholesale on
// every refresh; holders should re-resolve by stream URL afterwards.
type Snapshot struct {
	Channels   []models.Channel `json:"channels"`
	Countries  []string         `json:"countries"`
	Categories []string         `json:"categories"`
	LoadedAt   time.Time        `json:"loaded_at"`
	Empty      bool             `json:"empty"`
}

// Query filters channels the way the browse and search screens do.
type Query struct {
	Search   string // case-insensitive substring over name, country, category
	Country  string // substring of the channel's country; "" or "all" = any
	Category string // substring of the channel's category; "" or "all" = any
	Limit    int
	Offset   int
}

// Catalog owns the current channel set and its load/refresh lifecycle.
type Catalog struct {
	agg     *Aggregator
	sources []models.Source
	pinned  []string
	logger  logrus.FieldLogger

	refreshMu sync.Mutex

	mu    sync.RWMutex
	snap  Snapshot
	byID  map[string]int
	byURL map[string]int
	subs  map[int]chan Snapshot
	subID int
}

// New creates an empty Catalog. Call Refresh to load it.
func New(agg *Aggregator, sources []models.Source, pinned []string, logger logrus.FieldLogger) *Catalog {
	return &Catalog{
		agg:     agg,
		sources: sources,
		pinned:  pinned,
		logger:  logger,
		snap:    Snapshot{Channels: []models.Channel{}, Countries: []string{}, Categories: []string{}, Empty: true},
		byID:    map[string]int{},
		byURL:   map[string]int{},
		subs:    map[int]chan Snapshot{},
	}
}

// Sources returns the configured playlist sources.
func (c *Catalog) Sources() []models.Source {
	return c.sources
}

// Refresh rebuilds the catalog from all sources and notifies subscribers.
// An empty result is valid; Snapshot.Empty reports it.
func (c *Catalog) Refresh(ctx context.Context) Snapshot {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	channels := c.agg.Aggregate(ctx, c.sources)
	snap := Snapshot{
		Channels:   channels,
		Countries:  Countries(channels, c.pinned),
		Categories: Categories(channels),
		LoadedAt:   time.Now(),
		Empty:      len(channels) == 0,
	}
	byID := make(map[string]int, len(channels))
	byURL := make(map[string]int, len(channels))
	for i, ch := range channels {
		byID[ch.ID] = i
		byURL[ch.URL] = i
	}

	c.mu.Lock()
	c.snap, c.byID, c.byURL = snap, byID, byURL
	subs := make([]chan Snapshot, 0, len(c.subs))
	for _, ch := range c.subs {
		subs = append(subs, ch)
	}
	c.mu.Unlock()

	for _, ch := range subs {
		notify(ch, snap)
	}

	metrics.CatalogChannels.Set(float64(len(channels)))
	if snap.Empty {
		metrics.CatalogRefreshes.WithLabelValues("empty").Inc()
		c.logger.Warn("Catalog refresh produced no channels")
	} else {
		metrics.CatalogRefreshes.WithLabelValues("ok").Inc()
	}
	return snap
}

// notify delivers the latest snapshot, replacing an undelivered older one.
func notify(ch chan Snapshot, snap Snapshot) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

// Subscribe returns a channel that receives each completed refresh. Only the
// latest undelivered snapshot is kept. Call cancel to unsubscribe.
func (c *Catalog) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	c.mu.Lock()
	id := c.subID
	c.subID++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Snapshot returns the current catalog build.
func (c *Catalog) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// ByID looks a channel up by its per-load id.
func (c *Catalog) ByID(id string) (models.Channel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return models.Channel{}, false
	}
	return c.snap.Channels[i], true
}

// ByStreamURL re-resolves a channel by its stable stream identity.
func (c *Catalog) ByStreamURL(url string) (models.Channel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byURL[url]
	if !ok {
		return models.Channel{}, false
	}
	return c.snap.Channels[i], true
}

// Featured returns the first n channels.
func (c *Catalog) Featured(n int) []models.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if n > len(c.snap.Channels) {
		n = len(c.snap.Channels)
	}
	if n < 0 {
		n = 0
	}
	return append([]models.Channel(nil), c.snap.Channels[:n]...)
}

// Filter returns the channels matching q and the total match count before
// limit/offset.
func (c *Catalog) Filter(q Query) ([]models.Channel, int) {
	c.mu.RLock()
	channels := c.snap.Channels
	c.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(q.Search))
	var matched []models.Channel
	for _, ch := range channels {
		if search != "" &&
			!strings.Contains(strings.ToLower(ch.Name), search) &&
			!strings.Contains(strings.ToLower(ch.Country), search) &&
			!strings.Contains(strings.ToLower(ch.Category), search) {
			continue
		}
		if q.Category != "" && q.Category != All && !strings.Contains(ch.Category, q.Category) {
			continue
		}
		if q.Country != "" && q.Country != All && !strings.Contains(ch.Country, q.Country) {
			continue
		}
		matched = append(matched, ch)
	}

	total := len(matched)
	if q.Offset > 0 {
		if q.Offset >= total {
			return []models.Channel{}, total
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	if matched == nil {
		matched = []models.Channel{}
	}
	return matched, total
}
