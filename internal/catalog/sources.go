package catalog

import "github.com/voyagen/worldtv/internal/models"

const iptvOrg = "https://iptv-org.github.io/iptv"

// DefaultPinnedCountries are moved to the front of the country facet.
var DefaultPinnedCountries = []string{"PK", "IN"}

// DefaultSources returns the iptv-org playlists: per-country feeds first,
// then per-category feeds, then the general index as fallback.
func DefaultSources() []models.Source {
	sources := []models.Source{
		{Name: "pk", URL: iptvOrg + "/countries/pk.m3u", Tier: models.TierPriority, Country: "PK"},
		{Name: "in", URL: iptvOrg + "/countries/in.m3u", Tier: models.TierPriority, Country: "IN"},
	}
	for _, c := range []struct{ name, slug string }{
		{"News", "news"},
		{"Sports", "sports"},
		{"Entertainment", "entertainment"},
		{"Movies", "movies"},
		{"Music", "music"},
		{"Kids", "kids"},
		{"Documentary", "documentary"},
		{"Religious", "religious"},
	} {
		sources = append(sources, models.Source{
			Name:     c.slug,
			URL:      iptvOrg + "/categories/" + c.slug + ".m3u",
			Tier:     models.TierCategory,
			Category: c.name,
		})
	}
	return append(sources, models.Source{Name: "index", URL: iptvOrg + "/index.m3u", Tier: models.TierFallback})
}
