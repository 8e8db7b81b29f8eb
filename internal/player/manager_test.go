package player

import (
	"fmt"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestManager_singleActiveSession(t *testing.T) {
	is := is.New(t)
	h := newHarness()
	m := NewManager(h.options())

	first, err := m.Open(hlsChannel("a"))
	is.NoErr(err)
	second, err := m.Open(hlsChannel("b"))
	is.NoErr(err)

	is.True(first != second)
	is.Equal(first.Snapshot().State, StateClosed) // previous session closed
	is.True(h.engines.engines[0].destroyed)
	is.True(h.log.index("destroy:A") < h.log.index("attach:B")) // released before the new engine attaches
	is.Equal(m.Current(), second)

	// Events from the closed session's engine change nothing.
	h.engines.engines[0].manifestParsed()
	is.Equal(first.Snapshot().State, StateClosed)
	is.Equal(second.Snapshot().State, StateLoading)
}

func TestManager_sameChannelIsNotReopened(t *testing.T) {
	is := is.New(t)
	h := newHarness()
	m := NewManager(h.options())

	first, err := m.Open(hlsChannel("a"))
	is.NoErr(err)
	again, err := m.Open(hlsChannel("a"))
	is.NoErr(err)
	is.Equal(first, again)              // existing open is reused
	is.Equal(len(h.engines.engines), 1) // no reload
	is.Equal(h.reporter.count(), 1)     // reported once

	h.engines.last().fail(ClassFatal)
	reopened, err := m.Open(hlsChannel("a"))
	is.NoErr(err)
	is.True(reopened != first) // a failed session is replaced
	is.Equal(h.reporter.count(), 2)
}

func TestManager_close(t *testing.T) {
	is := is.New(t)
	h := newHarness()
	m := NewManager(h.options())
	s, err := m.Open(hlsChannel("a"))
	is.NoErr(err)

	m.Close()
	is.Equal(s.Snapshot().State, StateClosed)
	is.True(m.Current() == nil)
	m.Close() // no session is fine
}

func TestRegistry_perUser(t *testing.T) {
	is := is.New(t)
	built := 0
	r := NewRegistry(func(string) *Manager {
		built++
		return NewManager(newHarness().options())
	})

	alice := r.For("alice")
	is.Equal(r.For("alice"), alice) // cached
	bob := r.For("bob")
	is.True(alice != bob)
	is.Equal(built, 2)

	a, err := alice.Open(hlsChannel("a"))
	is.NoErr(err)
	b, err := bob.Open(hlsChannel("a"))
	is.NoErr(err)
	is.Equal(a.Snapshot().State, StateLoading) // users do not close each other's sessions
	is.Equal(b.Snapshot().State, StateLoading)

	r.CloseAll()
	is.Equal(a.Snapshot().State, StateClosed)
	is.Equal(b.Snapshot().State, StateClosed)
}

func TestRegistry_evictsIdleManagers(t *testing.T) {
	is := is.New(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(func(string) *Manager { return NewManager(newHarness().options()) })
	r.now = func() time.Time { return now }

	idle, err := r.For("idle").Open(hlsChannel("a"))
	is.NoErr(err)
	r.For("active")

	now = now.Add(DefaultIdleTimeout - time.Minute)
	_, ok := r.Lookup("active") // keeps it fresh
	is.True(ok)

	now = now.Add(2 * time.Minute)
	for i := 0; i < 100; i++ {
		r.For(fmt.Sprintf("visitor-%d", i))
	}
	is.Equal(r.Len(), 101) // the idle manager was dropped
	_, ok = r.Lookup("idle")
	is.True(!ok)
	is.Equal(idle.Snapshot().State, StateClosed) // its session was closed
	_, ok = r.Lookup("active")
	is.True(ok)

	now = now.Add(DefaultIdleTimeout)
	r.For("late")
	is.Equal(r.Len(), 1) // every expired entry goes in one sweep
}

func TestRegistry_release(t *testing.T) {
	is := is.New(t)
	r := NewRegistry(func(string) *Manager { return NewManager(newHarness().options()) })

	_, ok := r.Lookup("u1")
	is.True(!ok) // lookup never creates
	is.Equal(r.Len(), 0)

	s, err := r.For("u1").Open(hlsChannel("a"))
	is.NoErr(err)
	r.Release("u1")
	is.Equal(s.Snapshot().State, StateClosed)
	is.Equal(r.Len(), 0)
	r.Release("u1") // no-op
}

func TestVirtualSink(t *testing.T) {
	is := is.New(t)
	v := &VirtualSink{}
	is.True(v.CanPlay("https://x/clip.MP4?token=1"))
	is.True(v.CanPlay("https://x/live.ts"))
	is.True(!v.CanPlay("https://x/index.m3u8"))
	is.True(!v.CanPlay("https://x/stream"))
	is.True((&VirtualSink{NativeHLS: true}).CanPlay("https://x/index.m3u8"))

	is.Equal(v.Play(), ErrNoSource)
	v.SetSource("https://x/clip.mp4")
	is.NoErr(v.Play())
	v.SetMuted(true)
	is.Equal(v.State(), SinkState{Source: "https://x/clip.mp4", Playing: true, Muted: true})
	v.SetSource("")
	is.True(!v.State().Playing) // detaching stops playback
}
