package catalog

import (
	"slices"
	"strings"

	"github.com/voyagen/worldtv/internal/models"
)

// Countries returns the distinct country codes across channels, splitting
// multi-country values on ';' and excluding the Unknown sentinel. The result
// is sorted with the pinned codes that are present moved to the front, in
// pinned order.
func Countries(channels []models.Channel, pinned []string) []string {
	set := make(map[string]struct{})
	for _, ch := range channels {
		if ch.Country == "" || ch.Country == models.DefaultCountry {
			continue
		}
		for _, c := range strings.Split(ch.Country, ";") {
			if c = strings.TrimSpace(c); c != "" && c != models.DefaultCountry {
				set[c] = struct{}{}
			}
		}
	}
	sorted := make([]string, 0, len(set))
	for c := range set {
		sorted = append(sorted, c)
	}
	slices.Sort(sorted)

	out := make([]string, 0, len(sorted))
	for _, p := range pinned {
		if _, ok := set[p]; ok && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	for _, c := range sorted {
		if !slices.Contains(pinned, c) {
			out = append(out, c)
		}
	}
	return out
}

// Categories returns the distinct category labels, sorted.
func Categories(channels []models.Channel) []string {
	set := make(map[string]struct{})
	for _, ch := range channels {
		if ch.Category != "" {
			set[ch.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}
