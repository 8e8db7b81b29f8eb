package models

// Defaults applied when an #EXTINF line lacks an attribute.
const (
	DefaultName     = "Unknown"
	DefaultCountry  = "Unknown"
	DefaultCategory = "General"
)

// Tier orders playlist sources for merge precedence. Lower values win.
type Tier int16

const (
	TierPriority Tier = 0
	TierCategory Tier = 1
	TierFallback Tier = 2
)

func (t Tier) String() string {
	switch t {
	case TierPriority:
		return "priority"
	case TierCategory:
		return "category"
	case TierFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// ParseTier maps a config string to a Tier. Unknown strings map to TierFallback.
func ParseTier(s string) Tier {
	switch s {
	case "priority", "country":
		return TierPriority
	case "category":
		return TierCategory
	default:
		return TierFallback
	}
}

// MarshalText renders the tier name in JSON.
func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText accepts the names ParseTier does.
func (t *Tier) UnmarshalText(b []byte) error {
	*t = ParseTier(string(b))
	return nil
}
