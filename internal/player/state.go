// Package player implements the per-channel stream session: strategy
// selection, error classification, bounded retry and buffering tracking.
package player

import (
	"errors"
	"time"
)

// State is the top-level state of a Session.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateError
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Strategy is how a stream is being played.
type Strategy string

const (
	StrategyNone   Strategy = ""
	StrategyHLS    Strategy = "hls"
	StrategyNative Strategy = "native"
)

// ErrorClass classifies engine errors for the recovery policy.
type ErrorClass int

const (
	ClassNetwork ErrorClass = iota
	ClassMedia
	ClassFatal
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNetwork:
		return "network"
	case ClassMedia:
		return "media"
	default:
		return "fatal"
	}
}

// EventKind identifies an engine callback.
type EventKind int

const (
	EventManifestParsed EventKind = iota
	EventError
	EventWaiting
	EventResumed
)

// Event is one engine callback fed into the session's transition function.
type Event struct {
	Kind  EventKind
	Class ErrorClass
	Err   error
}

// User-facing reasons carried by terminal Error states.
const (
	ReasonUnsupported = "This format is not supported"
	ReasonNetwork     = "Network error"
	ReasonFatal       = "Unable to play this channel"
	ReasonNative      = "Failed to load stream"
)

// Defaults for the retry and controls timers.
const (
	DefaultMaxRetries   = 3
	DefaultRetryDelay   = 2 * time.Second
	DefaultControlsHide = 3 * time.Second
)

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session is closed")
	// ErrNotInError is returned by Retry outside the Error state.
	ErrNotInError = errors.New("session is not in error state")
	// ErrNotStarted is returned by TogglePlay before playback has started.
	ErrNotStarted = errors.New("playback has not started")
	// ErrNoSource is returned by a sink asked to play with no source set.
	ErrNoSource = errors.New("no source attached")
)

// Snapshot is the observable state of a Session.
type Snapshot struct {
	ID              string   `json:"id"`
	State           State    `json:"state"`
	Buffering       bool     `json:"buffering"`
	Muted           bool     `json:"muted"`
	Reason          string   `json:"reason,omitempty"`
	Terminal        bool     `json:"terminal"`
	Retries         int      `json:"retries"`
	Strategy        Strategy `json:"strategy,omitempty"`
	ChannelKey      string   `json:"channel_key,omitempty"`
	ChannelName     string   `json:"channel_name,omitempty"`
	ControlsVisible bool     `json:"controls_visible"`
}

// Overlay reports whether the UI should show the loading overlay: while
// loading, and while playing but starved for data.
func (s Snapshot) Overlay() bool {
	return s.State == StateLoading || (s.State == StatePlaying && s.Buffering)
}
