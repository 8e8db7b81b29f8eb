package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matryer/is"
	"github.com/sirupsen/logrus"

	"github.com/voyagen/worldtv/internal/catalog"
	"github.com/voyagen/worldtv/internal/models"
	"github.com/voyagen/worldtv/internal/player"
	"github.com/voyagen/worldtv/internal/service"
	"github.com/voyagen/worldtv/internal/store"
)

type stubFetcher map[string][]models.Channel

func (f stubFetcher) Fetch(_ context.Context, url string) []models.Channel { return f[url] }

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func channel(name, url, country, category string) models.Channel {
	return models.Channel{Name: name, URL: url, Country: country, Category: category, Languages: []string{}}
}

type testAPI struct {
	srv     *httptest.Server
	cat     *catalog.Catalog
	players *player.Registry
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	f := stubFetcher{
		"pk": {channel("Geo News", "https://s.example.com/geo.m3u8", "PK", "News")},
		"all": {
			channel("Star Movies", "https://s.example.com/star.mp4", "IN", "Movies"),
			channel("BBC News", "https://s.example.com/bbc.m3u8", "GB", "News"),
		},
	}
	sources := []models.Source{{Name: "pk", URL: "pk", Tier: models.TierPriority}, {Name: "all", URL: "all", Tier: models.TierFallback}}
	cat := catalog.New(catalog.NewAggregator(f, 0, quiet()), sources, catalog.DefaultPinnedCountries, quiet())
	cat.Refresh(context.Background())

	lib := service.NewLibrary(store.NewMemory(), cat, quiet())
	players := player.NewRegistry(func(string) *player.Manager {
		return player.NewManager(player.Options{Sink: &player.VirtualSink{}, Logger: quiet()})
	})
	s := New(Deps{Catalog: cat, Library: lib, Players: players, Logger: quiet()})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, cat: cat, players: players}
}

func (a *testAPI) do(t *testing.T, method, path, user, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

type channelList struct {
	Channels []models.Channel `json:"channels"`
	Total    int              `json:"total"`
}

func TestHealth(t *testing.T) {
	is := is.New(t)
	a := newTestAPI(t)
	resp := a.do(t, http.MethodGet, "/api/health", "", "")
	is.Equal(resp.StatusCode, http.StatusOK)
	body := decode[map[string]any](t, resp)
	is.Equal(body["status"], "ok")
	is.Equal(body["channels"], float64(3))
}

func TestChannels(t *testing.T) {
	is := is.New(t)
	a := newTestAPI(t)

	list := decode[channelList](t, a.do(t, http.MethodGet, "/api/channels", "", ""))
	is.Equal(list.Total, 3)
	is.Equal(list.Channels[0].Name, "Geo News") // priority tier first

	list = decode[channelList](t, a.do(t, http.MethodGet, "/api/channels?category=News&q=bbc", "", ""))
	is.Equal(list.Total, 1)
	is.Equal(list.Channels[0].Country, "GB")

	resp := a.do(t, http.MethodGet, "/api/channels?limit=abc", "", "")
	is.Equal(resp.StatusCode, http.StatusBadRequest)

	id := a.cat.Snapshot().Channels[1].ID
	ch := decode[models.Channel](t, a.do(t, http.MethodGet, "/api/channels/"+id, "", ""))
	is.Equal(ch.Name, "Star Movies")

	resp = a.do(t, http.MethodGet, "/api/channels/nope-0", "", "")
	is.Equal(resp.StatusCode, http.StatusNotFound)

	ch = decode[models.Channel](t, a.do(t, http.MethodGet, "/api/channels/lookup?url=https://s.example.com/bbc.m3u8", "", ""))
	is.Equal(ch.Name, "BBC News")
}

func TestFacets(t *testing.T) {
	is := is.New(t)
	a := newTestAPI(t)
	facets := decode[map[string][]string](t, a.do(t, http.MethodGet, "/api/facets", "", ""))
	is.Equal(facets["countries"], []string{"PK", "IN", "GB"})
	is.Equal(facets["categories"], []string{"Movies", "News"})
}

func TestFavorites(t *testing.T) {
	is := is.New(t)
	a := newTestAPI(t)

	resp := a.do(t, http.MethodGet, "/api/favorites", "", "")
	is.Equal(resp.StatusCode, http.StatusUnauthorized) // user header required

	ref := `{"url":"https://s.example.com/geo.m3u8"}`
	resp = a.do(t, http.MethodPost, "/api/favorites", "u1", ref)
	is.Equal(resp.StatusCode, http.StatusCreated)
	resp = a.do(t, http.MethodPost, "/api/favorites", "u1", ref)
	is.Equal(resp.StatusCode, http.StatusConflict)
	resp = a.do(t, http.MethodPost, "/api/favorites", "u1", `{"url":"https://gone.example.com/x"}`)
	is.Equal(resp.StatusCode, http.StatusNotFound)
	resp = a.do(t, http.MethodPost, "/api/favorites", "u1", `{}`)
	is.Equal(resp.StatusCode, http.StatusBadRequest)

	favs := decode[[]models.Favorite](t, a.do(t, http.MethodGet, "/api/favorites", "u1", ""))
	is.Equal(len(favs), 1)
	is.True(favs[0].Available)

	other := decode[[]models.Favorite](t, a.do(t, http.MethodGet, "/api/favorites", "u2", ""))
	is.Equal(len(other), 0) // per user

	check := decode[map[string]any](t, a.do(t, http.MethodGet, "/api/favorites/check?url=https://s.example.com/geo.m3u8", "u1", ""))
	is.Equal(check["favorite"], true)

	toggled := decode[map[string]any](t, a.do(t, http.MethodPost, "/api/favorites/toggle", "u1", ref))
	is.Equal(toggled["favorite"], false)

	resp = a.do(t, http.MethodDelete, "/api/favorites?url=https://s.example.com/geo.m3u8", "u1", "")
	is.Equal(resp.StatusCode, http.StatusNotFound) // toggled off already
}

func TestPlayer(t *testing.T) {
	is := is.New(t)
	a := newTestAPI(t)

	resp := a.do(t, http.MethodGet, "/api/player", "u1", "")
	is.Equal(resp.StatusCode, http.StatusNotFound)
	resp = a.do(t, http.MethodPost, "/api/player/toggle-play", "u1", "")
	is.Equal(resp.StatusCode, http.StatusConflict)
	is.Equal(a.players.Len(), 0) // only opening a channel allocates a player

	state := decode[map[string]any](t, a.do(t, http.MethodPost, "/api/player/open", "u1", `{"url":"https://s.example.com/star.mp4"}`))
	is.Equal(state["state"], "playing")
	is.Equal(state["strategy"], "native")
	is.Equal(state["overlay"], false)

	state = decode[map[string]any](t, a.do(t, http.MethodPost, "/api/player/toggle-play", "u1", ""))
	is.Equal(state["state"], "paused")

	state = decode[map[string]any](t, a.do(t, http.MethodPost, "/api/player/toggle-mute", "u1", ""))
	is.Equal(state["muted"], true)

	resp = a.do(t, http.MethodPost, "/api/player/retry", "u1", "")
	is.Equal(resp.StatusCode, http.StatusConflict) // not in error

	resp = a.do(t, http.MethodPost, "/api/player/rewind", "u1", "")
	is.Equal(resp.StatusCode, http.StatusNotFound)

	is.Equal(a.players.Len(), 1)
	resp = a.do(t, http.MethodPost, "/api/player/close", "u1", "")
	is.Equal(resp.StatusCode, http.StatusNoContent)
	is.Equal(a.players.Len(), 0) // closing releases the user's player
	resp = a.do(t, http.MethodGet, "/api/player", "u1", "")
	is.Equal(resp.StatusCode, http.StatusNotFound)
}

func TestPlayer_unsupportedStreamErrors(t *testing.T) {
	is := is.New(t)
	a := newTestAPI(t)
	// No HLS engine and a sink without native HLS.
	state := decode[map[string]any](t, a.do(t, http.MethodPost, "/api/player/open", "", `{"url":"https://s.example.com/geo.m3u8"}`))
	is.Equal(state["state"], "error")
	is.Equal(state["terminal"], true)
}

func TestRefresh_rateLimited(t *testing.T) {
	is := is.New(t)
	a := newTestAPI(t)

	resp := a.do(t, http.MethodPost, "/api/catalog/refresh", "", "")
	is.Equal(resp.StatusCode, http.StatusAccepted)
	body := decode[map[string]any](t, resp)
	is.Equal(body["status"], "refreshing")

	resp = a.do(t, http.MethodPost, "/api/catalog/refresh", "", "")
	is.Equal(resp.StatusCode, http.StatusTooManyRequests)
}

func TestDocs(t *testing.T) {
	is := is.New(t)
	a := newTestAPI(t)
	resp := a.do(t, http.MethodGet, "/api/docs/openapi.yaml", "", "")
	is.Equal(resp.StatusCode, http.StatusOK)
	resp = a.do(t, http.MethodOptions, "/api/channels", "", "")
	is.Equal(resp.Header.Get("Access-Control-Allow-Origin"), "*")
}
