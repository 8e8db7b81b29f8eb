package player

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voyagen/worldtv/internal/models"
)

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakeScheduler records timers; tests fire them explicitly.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// pending returns timers that are neither stopped nor fired.
func (s *fakeScheduler) pending() []*fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// fire runs the oldest pending timer with delay d.
func (s *fakeScheduler) fire(d time.Duration) bool {
	for _, t := range s.pending() {
		if t.d == d {
			t.fired = true
			t.f()
			return true
		}
	}
	return false
}

// runAll invokes every recorded callback, stopped or not, the way a timer
// that lost the race with Stop would.
func (s *fakeScheduler) runAll() {
	s.mu.Lock()
	timers := append([]*fakeTimer(nil), s.timers...)
	s.mu.Unlock()
	for _, t := range timers {
		t.fired = true
		t.f()
	}
}

// eventLog records engine and sink calls across instances in order.
type eventLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *eventLog) add(s string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.entries = append(l.entries, s)
	l.mu.Unlock()
}

func (l *eventLog) index(s string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e == s {
			return i
		}
	}
	return -1
}

type fakeEngine struct {
	name      string
	log       *eventLog
	emit      func(Event)
	sink      Sink
	loads     []string
	recovers  int
	destroyed bool
}

func (e *fakeEngine) Attach(s Sink) {
	e.sink = s
	e.log.add("attach:" + e.name)
}

func (e *fakeEngine) Load(url string) {
	e.loads = append(e.loads, url)
	e.log.add("load:" + e.name)
}

func (e *fakeEngine) RecoverMedia() { e.recovers++ }

func (e *fakeEngine) Destroy() {
	e.destroyed = true
	e.log.add("destroy:" + e.name)
}

func (e *fakeEngine) manifestParsed() { e.emit(Event{Kind: EventManifestParsed}) }

func (e *fakeEngine) fail(c ErrorClass) {
	e.emit(Event{Kind: EventError, Class: c, Err: errors.New(c.String())})
}

type fakeFactory struct {
	unsupported bool
	log         *eventLog
	engines     []*fakeEngine
}

func (f *fakeFactory) Supported() bool { return !f.unsupported }

func (f *fakeFactory) New(emit func(Event)) Engine {
	e := &fakeEngine{name: string(rune('A' + len(f.engines))), log: f.log, emit: emit}
	f.engines = append(f.engines, e)
	return e
}

func (f *fakeFactory) last() *fakeEngine {
	if len(f.engines) == 0 {
		return nil
	}
	return f.engines[len(f.engines)-1]
}

type fakeSink struct {
	native  bool
	playErr error

	mu      sync.Mutex
	source  string
	playing bool
	muted   bool
}

func (s *fakeSink) SetSource(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = url
}

func (s *fakeSink) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playErr != nil {
		return s.playErr
	}
	s.playing = true
	return nil
}

func (s *fakeSink) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
}

func (s *fakeSink) SetMuted(m bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = m
}

func (s *fakeSink) CanPlay(string) bool { return s.native }

func (s *fakeSink) isPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

type fakeReporter struct {
	mu       sync.Mutex
	channels []models.Channel
}

func (r *fakeReporter) RecordWatch(ch models.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels = append(r.channels, ch)
}

func (r *fakeReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

type harness struct {
	sched    *fakeScheduler
	engines  *fakeFactory
	sink     *fakeSink
	reporter *fakeReporter
	log      *eventLog
}

func newHarness() *harness {
	log := &eventLog{}
	return &harness{
		sched:    &fakeScheduler{},
		engines:  &fakeFactory{log: log},
		sink:     &fakeSink{},
		reporter: &fakeReporter{},
		log:      log,
	}
}

func (h *harness) options() Options {
	return Options{
		Engines:   h.engines,
		Sink:      h.sink,
		Scheduler: h.sched,
		Reporter:  h.reporter,
		Logger:    quiet(),
	}
}

func (h *harness) session() *Session { return NewSession(h.options()) }

func hlsChannel(name string) models.Channel {
	return models.Channel{ID: "run-" + name, Name: name, URL: "https://example.com/" + name + "/index.m3u8"}
}
