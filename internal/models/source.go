package models

// Source represents one playlist origin (e.g. one M3U URL) and its merge tier.
// Country and Category are optional hints inherited by records that carry
// no value of their own.
type Source struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Tier     Tier   `json:"tier"`
	Country  string `json:"country,omitempty"`
	Category string `json:"category,omitempty"`
}
