// Package metrics holds the Prometheus collectors shared by the catalog,
// fetcher and player packages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PlaylistFetches counts playlist retrievals by result ("ok", "error", "status").
	PlaylistFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worldtv_playlist_fetch_total",
		Help: "Playlist fetches by result.",
	}, []string{"result"})

	// CatalogChannels is the number of channels in the last aggregated catalog.
	CatalogChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "worldtv_catalog_channels",
		Help: "Channels in the current catalog.",
	})

	// CatalogDuplicates counts records dropped by stream URL deduplication.
	CatalogDuplicates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worldtv_catalog_duplicates_total",
		Help: "Records dropped because their stream URL was already seen.",
	})

	// CatalogRefreshes counts catalog refreshes by outcome ("ok", "empty",
	// "throttled").
	CatalogRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worldtv_catalog_refresh_total",
		Help: "Catalog refreshes by outcome.",
	}, []string{"outcome"})

	// SessionTransitions counts stream session state entries.
	SessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worldtv_session_transitions_total",
		Help: "Stream session state transitions by target state.",
	}, []string{"state"})

	// SessionRetries counts automatic network retries.
	SessionRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worldtv_session_retries_total",
		Help: "Automatic stream reloads after network errors.",
	})
)
