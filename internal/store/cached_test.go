package store

import (
	"strings"
	"testing"

	"github.com/matryer/is"
)

func TestCacheKeys(t *testing.T) {
	is := is.New(t)

	k := favoritesKey("user*[x]")
	is.True(strings.HasPrefix(k, "worldtv:favorites:"))
	is.True(!strings.ContainsAny(k[len("worldtv:favorites:"):], "*?[]")) // no glob characters from user ids
	is.Equal(favoritesKey("a"), favoritesKey("a"))
	is.True(favoritesKey("a") != favoritesKey("b"))
	is.True(strings.HasPrefix(recentPrefix("a"), "worldtv:recent:"))
}
