// Package catalog aggregates playlist sources into one deduplicated channel
// catalog and serves browse/filter queries over it.
package catalog

import (
	"context"
	"slices"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/voyagen/worldtv/internal/metrics"
	"github.com/voyagen/worldtv/internal/models"
)

// PlaylistFetcher retrieves and parses one playlist. Failures yield an empty
// slice, never an error.
type PlaylistFetcher interface {
	Fetch(ctx context.Context, url string) []models.Channel
}

// Aggregator fetches many sources concurrently and merges them by tier.
type Aggregator struct {
	fetcher     PlaylistFetcher
	concurrency int
	logger      logrus.FieldLogger
}

// NewAggregator creates an Aggregator. concurrency <= 0 fetches every source at once.
func NewAggregator(f PlaylistFetcher, concurrency int, logger logrus.FieldLogger) *Aggregator {
	return &Aggregator{fetcher: f, concurrency: concurrency, logger: logger}
}

// Aggregate fetches all sources and merges them. The merge order is tier,
// then source-list order, then document order, independent of network
// completion order. The first record seen for a stream URL wins.
func (a *Aggregator) Aggregate(ctx context.Context, sources []models.Source) []models.Channel {
	results := make([][]models.Channel, len(sources))

	var g errgroup.Group
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}
	for i, src := range sources {
		g.Go(func() error {
			results[i] = a.fetcher.Fetch(ctx, src.URL)
			return nil
		})
	}
	_ = g.Wait()

	order := make([]int, len(sources))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(x, y int) int {
		return int(sources[x].Tier) - int(sources[y].Tier)
	})

	runID := uuid.NewString()[:8]
	seen := make(map[string]struct{})
	merged := make([]models.Channel, 0)
	dropped := 0
	for _, i := range order {
		src := sources[i]
		for _, ch := range results[i] {
			if _, ok := seen[ch.URL]; ok {
				dropped++
				continue
			}
			seen[ch.URL] = struct{}{}
			applyHints(&ch, src)
			ch.ID = runID + "-" + strconv.Itoa(len(merged))
			merged = append(merged, ch)
		}
	}

	metrics.CatalogDuplicates.Add(float64(dropped))
	a.logger.WithFields(logrus.Fields{
		"sources":    len(sources),
		"channels":   len(merged),
		"duplicates": dropped,
	}).Info("Aggregated playlist sources")
	return merged
}

// applyHints fills the source-level country/category into records whose own
// metadata left the field at its default. Line metadata always wins.
func applyHints(ch *models.Channel, src models.Source) {
	if src.Country != "" && (ch.Country == "" || ch.Country == models.DefaultCountry) {
		ch.Country = src.Country
	}
	if src.Category != "" && (ch.Category == "" || ch.Category == models.DefaultCategory) {
		ch.Category = src.Category
	}
}
