package player

import (
	"time"

	"github.com/voyagen/worldtv/internal/models"
)

// Sink is the single decodable media output a session plays into.
type Sink interface {
	// SetSource points the sink at url; "" detaches it.
	SetSource(url string)
	Play() error
	Pause()
	SetMuted(muted bool)
	// CanPlay reports whether the sink can play url natively.
	CanPlay(url string) bool
}

// Engine is one adaptive-streaming engine instance. Load and RecoverMedia
// report their outcome through the emit function given to EngineFactory.New.
type Engine interface {
	Attach(sink Sink)
	Load(url string)
	RecoverMedia()
	Destroy()
}

// EngineFactory creates engines bound to an event sink.
type EngineFactory interface {
	Supported() bool
	New(emit func(Event)) Engine
}

// WatchReporter receives the channel once per open. Implementations must
// not block.
type WatchReporter interface {
	RecordWatch(ch models.Channel)
}

// Timer is a cancellable single-shot task.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealScheduler schedules on the runtime timer.
var RealScheduler Scheduler = realScheduler{}
