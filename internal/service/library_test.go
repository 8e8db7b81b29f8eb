package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/sirupsen/logrus"

	"github.com/voyagen/worldtv/internal/models"
	"github.com/voyagen/worldtv/internal/store"
)

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakeCatalog is a ChannelLookup over a fixed channel list.
type fakeCatalog struct {
	channels []models.Channel
}

func (f *fakeCatalog) ByID(id string) (models.Channel, bool) {
	for _, ch := range f.channels {
		if ch.ID == id {
			return ch, true
		}
	}
	return models.Channel{}, false
}

func (f *fakeCatalog) ByStreamURL(url string) (models.Channel, bool) {
	for _, ch := range f.channels {
		if ch.URL == url {
			return ch, true
		}
	}
	return models.Channel{}, false
}

var (
	geo  = models.Channel{ID: "aaaa1111-0", Name: "Geo News", URL: "https://cdn.example.com/geo.m3u8", Country: "PK", Category: "News"}
	star = models.Channel{ID: "aaaa1111-1", Name: "Star", URL: "https://cdn.example.com/star.m3u8", Country: "IN", Category: "Entertainment"}
)

func TestLibrary_resolve(t *testing.T) {
	is := is.New(t)
	lib := NewLibrary(store.NewMemory(), &fakeCatalog{channels: []models.Channel{geo, star}}, quiet())

	ch, err := lib.Resolve(geo.ID, "")
	is.NoErr(err)
	is.Equal(ch.Name, "Geo News")

	ch, err = lib.Resolve("stale-id", star.URL)
	is.NoErr(err)
	is.Equal(ch.ID, star.ID) // falls back to stream URL

	_, err = lib.Resolve("stale-id", "https://gone.example.com/x.m3u8")
	is.True(errors.Is(err, ErrUnknownChannel))
}

func TestLibrary_favoritesSurviveRefresh(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	cat := &fakeCatalog{channels: []models.Channel{geo, star}}
	lib := NewLibrary(store.NewMemory(), cat, quiet())

	is.NoErr(lib.AddFavorite(ctx, "u1", geo))
	is.NoErr(lib.AddFavorite(ctx, "u1", star))

	// A refresh reassigns ids and drops Star.
	refreshed := geo
	refreshed.ID = "bbbb2222-5"
	refreshed.Name = "Geo News HD"
	cat.channels = []models.Channel{refreshed}

	favs, err := lib.Favorites(ctx, "u1")
	is.NoErr(err)
	is.Equal(len(favs), 2)

	is.Equal(favs[0].Channel.URL, star.URL)
	is.True(!favs[0].Available)            // no longer in the catalog
	is.Equal(favs[0].Channel.ID, "")       // stale id cleared
	is.Equal(favs[0].Channel.Name, "Star") // stored snapshot kept

	is.True(favs[1].Available)
	is.Equal(favs[1].Channel.ID, "bbbb2222-5")
	is.Equal(favs[1].Channel.Name, "Geo News HD")
}

func TestLibrary_toggleFavorite(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	lib := NewLibrary(store.NewMemory(), &fakeCatalog{channels: []models.Channel{geo}}, quiet())

	on, err := lib.ToggleFavorite(ctx, "u1", geo)
	is.NoErr(err)
	is.True(on)
	ok, _ := lib.IsFavorite(ctx, "u1", geo.URL)
	is.True(ok)

	on, err = lib.ToggleFavorite(ctx, "u1", geo)
	is.NoErr(err)
	is.True(!on)
	ok, _ = lib.IsFavorite(ctx, "u1", geo.URL)
	is.True(!ok)

	err = lib.RemoveFavorite(ctx, "u1", geo.URL)
	is.True(errors.Is(err, store.ErrNotFound))
}

func TestLibrary_recent(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	mem := store.NewMemory()
	lib := NewLibrary(mem, &fakeCatalog{channels: []models.Channel{geo}}, quiet())

	now := time.Now()
	is.NoErr(mem.RecordWatch(ctx, "u1", star, now.Add(-time.Minute)))
	is.NoErr(mem.RecordWatch(ctx, "u1", geo, now))

	recent, err := lib.Recent(ctx, "u1", 0)
	is.NoErr(err)
	is.Equal(len(recent), 2)
	is.Equal(recent[0].Channel.URL, geo.URL)
	is.True(recent[0].Available)
	is.True(!recent[1].Available)

	is.NoErr(lib.ClearRecent(ctx, "u1"))
	recent, _ = lib.Recent(ctx, "u1", 0)
	is.Equal(len(recent), 0)
}
