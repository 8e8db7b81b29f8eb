// Package guide produces placeholder program listings. Playlists carry no
// EPG data, so slots are synthetic and stable per stream.
package guide

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/voyagen/worldtv/internal/models"
)

const (
	// DefaultSlots is the number of slots generated per channel.
	DefaultSlots = 6
	// SlotLength is the duration of every slot.
	SlotLength = 2 * time.Hour
)

var titles = []string{
	"Morning News", "Talk Show", "Documentary", "Sports Live", "Movie Special",
	"Evening News", "Drama Series", "Reality Show", "Late Night", "Music Hour",
	"Comedy Show", "Interview", "Nature Documentary", "Game Show", "Lifestyle",
}

// Entry is one guide row.
type Entry struct {
	Channel  models.Channel   `json:"channel"`
	Programs []models.Program `json:"programs"`
	Current  *models.Program  `json:"current,omitempty"`
}

// Generate returns slots back-to-back from two hours before the start of
// now's hour. Titles depend only on the stream URL and slot index.
func Generate(ch models.Channel, now time.Time, slots int) []models.Program {
	if slots <= 0 {
		slots = DefaultSlots
	}
	seed := hash(ch.StreamKey())
	start := now.Truncate(time.Hour).Add(-2 * time.Hour)
	out := make([]models.Program, 0, slots)
	for i := 0; i < slots; i++ {
		s := start.Add(time.Duration(i) * SlotLength)
		e := s.Add(SlotLength)
		out = append(out, models.Program{
			ID:    fmt.Sprintf("%s-prog-%d", ch.ID, i),
			Title: titles[(seed+uint32(i))%uint32(len(titles))],
			Start: s,
			End:   e,
			Live:  !now.Before(s) && now.Before(e),
			Past:  !now.Before(e),
		})
	}
	return out
}

// Build returns guide entries for channels.
func Build(channels []models.Channel, now time.Time) []Entry {
	out := make([]Entry, 0, len(channels))
	for _, ch := range channels {
		e := Entry{Channel: ch, Programs: Generate(ch, now, DefaultSlots)}
		for i := range e.Programs {
			if e.Programs[i].Live {
				e.Current = &e.Programs[i]
				break
			}
		}
		out = append(out, e)
	}
	return out
}

func hash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
