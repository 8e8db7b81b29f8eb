package player

import (
	"path"
	"strings"
	"sync"
)

// nativeExtensions are the containers a VirtualSink plays without an engine.
var nativeExtensions = map[string]bool{
	".mp4": true, ".m4v": true, ".webm": true, ".ogg": true, ".ogv": true,
	".mp3": true, ".aac": true, ".m4a": true, ".ts": true,
}

// VirtualSink is a server-side playback sink. It records what a client
// player has been told to do.
type VirtualSink struct {
	// NativeHLS reports whether the sink can play HLS manifests itself.
	NativeHLS bool

	mu      sync.Mutex
	source  string
	playing bool
	muted   bool
}

// SinkState is a point-in-time view of a VirtualSink.
type SinkState struct {
	Source  string `json:"source"`
	Playing bool   `json:"playing"`
	Muted   bool   `json:"muted"`
}

func (v *VirtualSink) SetSource(url string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.source = url
	if url == "" {
		v.playing = false
	}
}

func (v *VirtualSink) Play() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.source == "" {
		return ErrNoSource
	}
	v.playing = true
	return nil
}

func (v *VirtualSink) Pause() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.playing = false
}

func (v *VirtualSink) SetMuted(muted bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.muted = muted
}

func (v *VirtualSink) CanPlay(url string) bool {
	u := strings.ToLower(url)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	ext := path.Ext(u)
	if ext == ".m3u8" {
		return v.NativeHLS
	}
	return nativeExtensions[ext]
}

// State returns the sink's current state.
func (v *VirtualSink) State() SinkState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return SinkState{Source: v.source, Playing: v.playing, Muted: v.muted}
}
