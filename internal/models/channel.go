package models

// Channel represents a single stream entry from an M3U playlist.
// ID is regenerated on every catalog load; URL is the stable stream identity.
type Channel struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Logo      string   `json:"logo"`
	URL       string   `json:"url"`
	Country   string   `json:"country"`
	Category  string   `json:"category"`
	Languages []string `json:"languages"`
	TvgID     string   `json:"tvg_id,omitempty"`
}

// StreamKey returns the identity used to correlate a channel across
// catalog refreshes, favorites and recently-watched entries.
func (c Channel) StreamKey() string {
	return c.URL
}
