package guide

import (
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/voyagen/worldtv/internal/models"
)

var ch = models.Channel{ID: "abcd1234-3", Name: "Geo", URL: "https://cdn.example.com/geo.m3u8"}

func TestGenerate(t *testing.T) {
	is := is.New(t)
	now := time.Date(2024, 5, 1, 14, 37, 0, 0, time.UTC)

	progs := Generate(ch, now, 0)
	is.Equal(len(progs), DefaultSlots)
	is.Equal(progs[0].Start, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) // two hours before the hour
	is.Equal(progs[0].ID, "abcd1234-3-prog-0")

	live := 0
	for i, p := range progs {
		is.Equal(p.End.Sub(p.Start), SlotLength)
		if i > 0 {
			is.Equal(p.Start, progs[i-1].End) // back to back
		}
		if p.Live {
			live++
			is.True(!p.Past)
		}
	}
	is.Equal(live, 1)
	is.True(progs[0].Past)
	is.True(progs[1].Live)
}

func TestGenerate_titlesStablePerStream(t *testing.T) {
	is := is.New(t)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	a := Generate(ch, now, 3)
	renamed := ch
	renamed.ID = "ffff0000-9"
	b := Generate(renamed, now.Add(10*time.Minute), 3)
	for i := range a {
		is.Equal(a[i].Title, b[i].Title) // same stream, same titles across refreshes
	}
}

func TestBuild_current(t *testing.T) {
	is := is.New(t)
	now := time.Date(2024, 5, 1, 9, 15, 0, 0, time.UTC)
	entries := Build([]models.Channel{ch, {ID: "x-1", URL: "https://cdn.example.com/x.m3u8"}}, now)
	is.Equal(len(entries), 2)
	for _, e := range entries {
		is.True(e.Current != nil)
		is.True(e.Current.Live)
		is.True(!now.Before(e.Current.Start) && now.Before(e.Current.End))
	}
}
