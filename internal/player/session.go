package player

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/voyagen/worldtv/internal/metrics"
	"github.com/voyagen/worldtv/internal/models"
)

// Options configures the collaborators and timing of a Session.
type Options struct {
	Engines      EngineFactory
	Sink         Sink
	Scheduler    Scheduler
	Reporter     WatchReporter
	Logger       logrus.FieldLogger
	MaxRetries   int
	RetryDelay   time.Duration
	ControlsHide time.Duration
	// OnChange is called after every transition, outside the session lock.
	OnChange func(Snapshot)
}

func (o *Options) defaults() {
	if o.Scheduler == nil {
		o.Scheduler = RealScheduler
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.ControlsHide <= 0 {
		o.ControlsHide = DefaultControlsHide
	}
}

// Session is the playback state machine for one open channel. Every engine
// callback and user action goes through the same locked transition code;
// callbacks carry the generation they were issued for and are dropped once
// the session has moved on (reload, reopen or close).
type Session struct {
	id   string
	opts Options
	log  logrus.FieldLogger

	mu         sync.Mutex
	gen        uint64
	state      State
	channel    models.Channel
	engine     Engine
	strategy   Strategy
	retries    int
	buffering  bool
	recovering bool
	muted      bool
	reason     string
	terminal   bool

	retryTimer    Timer
	controlsTimer Timer
	controlsSeq   uint64
	controlsShown bool
}

// NewSession creates an idle session.
func NewSession(opts Options) *Session {
	opts.defaults()
	id := uuid.NewString()
	return &Session{
		id:            id,
		opts:          opts,
		log:           opts.Logger.WithField("session", id),
		state:         StateIdle,
		controlsShown: true,
	}
}

// ID returns the session identity.
func (s *Session) ID() string { return s.id }

// effects are sink/engine commands collected under the lock and run after
// it is released, so engines may call back synchronously.
type effects []func()

func (s *Session) commit(fx effects) {
	for _, f := range fx {
		f()
	}
	if s.opts.OnChange != nil {
		s.opts.OnChange(s.Snapshot())
	}
}

// Snapshot returns the current observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:              s.id,
		State:           s.state,
		Buffering:       s.buffering,
		Muted:           s.muted,
		Reason:          s.reason,
		Terminal:        s.terminal,
		Retries:         s.retries,
		Strategy:        s.strategy,
		ChannelKey:      s.channel.StreamKey(),
		ChannelName:     s.channel.Name,
		ControlsVisible: s.controlsShown,
	}
}

// Channel returns the channel currently open.
func (s *Session) Channel() models.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// Open starts playing ch, releasing any engine attached for a previous
// channel first. The channel is reported to the watch reporter once per open.
func (s *Session) Open(ch models.Channel) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	fx := s.releaseLocked()
	s.channel = ch
	s.retries = 0
	fx = append(fx, s.loadLocked()...)
	s.mu.Unlock()

	// Only Open reports; Retry and automatic reloads reuse the same open.
	if s.opts.Reporter != nil {
		s.opts.Reporter.RecordWatch(ch)
	}
	s.commit(fx)
	return nil
}

// Retry re-opens the channel from the Error state with a fresh retry budget.
func (s *Session) Retry() error {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return ErrClosed
	case StateError:
	default:
		s.mu.Unlock()
		return ErrNotInError
	}
	fx := s.releaseLocked()
	s.retries = 0
	fx = append(fx, s.loadLocked()...)
	s.mu.Unlock()
	s.commit(fx)
	return nil
}

// TogglePlay switches between Playing and Paused by commanding the sink.
func (s *Session) TogglePlay() error {
	s.mu.Lock()
	var fx effects
	sink := s.opts.Sink
	switch s.state {
	case StatePlaying:
		s.setStateLocked(StatePaused)
		fx = append(fx, sink.Pause)
	case StatePaused:
		s.setStateLocked(StatePlaying)
		fx = append(fx, func() { _ = sink.Play() })
	case StateClosed:
		s.mu.Unlock()
		return ErrClosed
	default:
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.mu.Unlock()
	s.commit(fx)
	return nil
}

// ToggleMute flips the sink audio flag. It does not touch the state machine.
func (s *Session) ToggleMute() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.muted = !s.muted
	muted, sink := s.muted, s.opts.Sink
	s.mu.Unlock()
	s.commit(effects{func() { sink.SetMuted(muted) }})
	return nil
}

// Activity shows the controls and re-arms the auto-hide timer.
func (s *Session) Activity() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.controlsShown = true
	if s.controlsTimer != nil {
		s.controlsTimer.Stop()
	}
	s.controlsSeq++
	seq := s.controlsSeq
	s.controlsTimer = s.opts.Scheduler.AfterFunc(s.opts.ControlsHide, func() { s.hideControls(seq) })
	s.mu.Unlock()
	s.commit(nil)
}

func (s *Session) hideControls(seq uint64) {
	s.mu.Lock()
	if s.state == StateClosed || seq != s.controlsSeq {
		s.mu.Unlock()
		return
	}
	s.controlsShown = false
	s.controlsTimer = nil
	s.mu.Unlock()
	s.commit(nil)
}

// Close releases the engine and cancels pending timers. It is terminal and
// idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	fx := s.releaseLocked()
	if s.controlsTimer != nil {
		s.controlsTimer.Stop()
		s.controlsTimer = nil
	}
	s.controlsSeq++
	s.setStateLocked(StateClosed)
	sink := s.opts.Sink
	s.mu.Unlock()

	fx = append(fx, sink.Pause, func() { sink.SetSource("") })
	s.commit(fx)
}

// releaseLocked invalidates outstanding callbacks and timers and detaches
// the current engine. The engine is destroyed in the returned effects, which
// run before anything else is attached.
func (s *Session) releaseLocked() effects {
	s.gen++
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	var fx effects
	if eng := s.engine; eng != nil {
		fx = append(fx, eng.Destroy)
		s.engine = nil
	}
	s.buffering = false
	s.recovering = false
	return fx
}

// loadLocked enters Loading and selects how to play the channel.
func (s *Session) loadLocked() effects {
	s.gen++
	gen := s.gen
	s.reason = ""
	s.terminal = false
	s.setStateLocked(StateLoading)

	url := s.channel.URL
	sink := s.opts.Sink
	if s.opts.Engines != nil && s.opts.Engines.Supported() && isHLSURL(url) {
		eng := s.opts.Engines.New(func(ev Event) { s.handle(gen, ev) })
		s.engine = eng
		s.strategy = StrategyHLS
		return effects{func() {
			eng.Attach(sink)
			eng.Load(url)
		}}
	}
	if sink.CanPlay(url) {
		s.strategy = StrategyNative
		return effects{func() {
			sink.SetSource(url)
			err := sink.Play()
			s.nativeStarted(gen, err)
		}}
	}
	s.strategy = StrategyNone
	s.failLocked(ReasonUnsupported)
	return nil
}

func (s *Session) nativeStarted(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.gen || s.state != StateLoading {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.log.WithError(err).Warn("Native playback failed")
		s.failLocked(ReasonNative)
	} else {
		s.setStateLocked(StatePlaying)
	}
	s.mu.Unlock()
	s.commit(nil)
}

// handle is the transition function for engine events.
func (s *Session) handle(gen uint64, ev Event) {
	s.mu.Lock()
	if gen != s.gen || s.state == StateClosed {
		s.mu.Unlock()
		return
	}

	var fx effects
	switch ev.Kind {
	case EventManifestParsed:
		s.recovering = false
		if s.state == StateLoading {
			s.setStateLocked(StatePlaying)
			sink := s.opts.Sink
			fx = append(fx, func() { _ = sink.Play() })
		}
	case EventWaiting:
		if s.state == StatePlaying {
			s.buffering = true
		}
	case EventResumed:
		s.buffering = false
		s.recovering = false
	case EventError:
		fx = s.engineErrorLocked(ev)
	}
	s.mu.Unlock()
	s.commit(fx)
}

func (s *Session) engineErrorLocked(ev Event) effects {
	log := s.log.WithFields(logrus.Fields{"class": ev.Class.String(), "retries": s.retries})
	if ev.Err != nil {
		log = log.WithError(ev.Err)
	}

	switch ev.Class {
	case ClassNetwork:
		if s.retries >= s.opts.MaxRetries {
			log.Warn("Network retries exhausted")
			fx := s.releaseLocked()
			s.failLocked(ReasonNetwork)
			return fx
		}
		s.retries++
		metrics.SessionRetries.Inc()
		log.WithField("delay", s.opts.RetryDelay).Info("Network error, scheduling reload")
		fx := s.releaseLocked()
		gen := s.gen
		s.setStateLocked(StateLoading)
		s.retryTimer = s.opts.Scheduler.AfterFunc(s.opts.RetryDelay, func() { s.reload(gen) })
		return fx

	case ClassMedia:
		if s.recovering {
			log.Warn("Media recovery failed")
			fx := s.releaseLocked()
			s.failLocked(ReasonFatal)
			return fx
		}
		log.Info("Media error, recovering in place")
		s.recovering = true
		eng := s.engine
		if eng == nil {
			return nil
		}
		return effects{eng.RecoverMedia}

	default:
		log.Warn("Fatal playback error")
		fx := s.releaseLocked()
		s.failLocked(ReasonFatal)
		return fx
	}
}

// reload is the retry timer callback.
func (s *Session) reload(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.retryTimer = nil
	fx := s.loadLocked()
	s.mu.Unlock()
	s.commit(fx)
}

func (s *Session) failLocked(reason string) {
	s.reason = reason
	s.terminal = true
	s.buffering = false
	s.setStateLocked(StateError)
}

func (s *Session) setStateLocked(st State) {
	if s.state == st {
		return
	}
	s.log.WithFields(logrus.Fields{"from": s.state.String(), "to": st.String()}).Debug("Session state")
	s.state = st
	metrics.SessionTransitions.WithLabelValues(st.String()).Inc()
}

func isHLSURL(url string) bool {
	return strings.Contains(strings.ToLower(url), ".m3u8")
}
