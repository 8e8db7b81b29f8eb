package player

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/grafov/m3u8"
	"github.com/sirupsen/logrus"
)

var (
	errNoVariants   = errors.New("master playlist has no variants")
	errNoSegments   = errors.New("media playlist has no segments")
	errNestedMaster = errors.New("variant is not a media playlist")
)

// stallPolls is the number of playlist refreshes without a new media
// sequence before the engine reports it is waiting for data.
const stallPolls = 2

// HLSFactory creates engines that load HLS manifests over HTTP.
type HLSFactory struct {
	Client    *http.Client
	UserAgent string
	// PollInterval overrides the live playlist refresh period; 0 uses the
	// playlist's target duration, negative disables refreshing.
	PollInterval time.Duration
	Logger       logrus.FieldLogger
}

// Supported reports whether the engine can run. It always can.
func (f *HLSFactory) Supported() bool { return true }

// New creates an engine reporting to emit.
func (f *HLSFactory) New(emit func(Event)) Engine {
	ctx, cancel := context.WithCancel(context.Background())
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	logger := f.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &hlsEngine{
		factory: f,
		client:  client,
		emit:    emit,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
}

type hlsEngine struct {
	factory *HLSFactory
	client  *http.Client
	emit    func(Event)
	ctx     context.Context
	cancel  context.CancelFunc
	logger  logrus.FieldLogger

	mu        sync.Mutex
	sink      Sink
	manifest  string
	destroyed bool
}

func (e *hlsEngine) Attach(sink Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.destroyed {
		e.sink = sink
	}
}

func (e *hlsEngine) Load(manifestURL string) {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.manifest = manifestURL
	e.mu.Unlock()
	go e.run(manifestURL)
}

// RecoverMedia re-reads the manifest without tearing the engine down.
func (e *hlsEngine) RecoverMedia() {
	e.mu.Lock()
	manifestURL, destroyed := e.manifest, e.destroyed
	e.mu.Unlock()
	if destroyed || manifestURL == "" {
		return
	}
	go e.run(manifestURL)
}

func (e *hlsEngine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
	e.destroyed = true
	e.cancel()
	if e.sink != nil {
		e.sink.SetSource("")
		e.sink = nil
	}
}

func (e *hlsEngine) report(ev Event) {
	if e.ctx.Err() != nil {
		return
	}
	e.emit(ev)
}

func (e *hlsEngine) run(manifestURL string) {
	media, mediaURL, err := e.resolve(manifestURL)
	if err != nil {
		e.logger.WithError(err).WithField("url", manifestURL).Debug("HLS manifest load failed")
		e.report(classify(err))
		return
	}

	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	if e.sink != nil {
		e.sink.SetSource(mediaURL)
	}
	e.mu.Unlock()

	e.report(Event{Kind: EventManifestParsed})
	if !media.Closed {
		e.follow(mediaURL, media)
	}
}

// follow refreshes a live media playlist and reports stalls as waiting.
func (e *hlsEngine) follow(mediaURL string, media *m3u8.MediaPlaylist) {
	interval := e.factory.PollInterval
	if interval < 0 {
		return
	}
	if interval == 0 {
		interval = time.Duration(float64(media.TargetDuration) * float64(time.Second))
	}
	if interval < time.Second {
		interval = time.Second
	}

	lastSeq := media.SeqNo
	stalled, waiting := 0, false
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
		}
		p, err := e.decodeMedia(mediaURL)
		if err != nil {
			e.report(classify(err))
			return
		}
		if p.SeqNo == lastSeq {
			stalled++
			if stalled >= stallPolls && !waiting {
				waiting = true
				e.report(Event{Kind: EventWaiting})
			}
		} else {
			lastSeq, stalled = p.SeqNo, 0
			if waiting {
				waiting = false
				e.report(Event{Kind: EventResumed})
			}
		}
		if p.Closed {
			return
		}
	}
}

// resolve decodes manifestURL and, for a master playlist, its
// highest-bandwidth variant.
func (e *hlsEngine) resolve(manifestURL string) (*m3u8.MediaPlaylist, string, error) {
	pl, listType, err := e.decode(manifestURL)
	if err != nil {
		return nil, "", err
	}
	if listType == m3u8.MEDIA {
		media := pl.(*m3u8.MediaPlaylist)
		if media.Count() == 0 {
			return nil, "", fatalError{errNoSegments}
		}
		return media, manifestURL, nil
	}

	master := pl.(*m3u8.MasterPlaylist)
	var best *m3u8.Variant
	for _, v := range master.Variants {
		if v == nil || v.URI == "" {
			continue
		}
		if best == nil || v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	if best == nil {
		return nil, "", fatalError{errNoVariants}
	}
	variantURL, err := resolveRef(manifestURL, best.URI)
	if err != nil {
		return nil, "", mediaError{err}
	}
	media, err := e.decodeMedia(variantURL)
	if err != nil {
		return nil, "", err
	}
	if media.Count() == 0 {
		return nil, "", fatalError{errNoSegments}
	}
	return media, variantURL, nil
}

func (e *hlsEngine) decodeMedia(mediaURL string) (*m3u8.MediaPlaylist, error) {
	pl, listType, err := e.decode(mediaURL)
	if err != nil {
		return nil, err
	}
	if listType != m3u8.MEDIA {
		return nil, mediaError{errNestedMaster}
	}
	return pl.(*m3u8.MediaPlaylist), nil
}

func (e *hlsEngine) decode(playlistURL string) (m3u8.Playlist, m3u8.ListType, error) {
	req, err := http.NewRequestWithContext(e.ctx, http.MethodGet, playlistURL, nil)
	if err != nil {
		return nil, 0, fatalError{err}
	}
	if e.factory.UserAgent != "" {
		req.Header.Set("User-Agent", e.factory.UserAgent)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, 0, networkError{err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("playlist %s: HTTP %d", playlistURL, resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests {
			return nil, 0, networkError{err}
		}
		return nil, 0, fatalError{err}
	}
	pl, listType, err := m3u8.DecodeFrom(bufio.NewReader(resp.Body), false)
	if err != nil {
		if e.ctx.Err() != nil {
			return nil, 0, networkError{err}
		}
		return nil, 0, mediaError{fmt.Errorf("decode %s: %w", playlistURL, err)}
	}
	return pl, listType, nil
}

func resolveRef(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

type networkError struct{ error }
type mediaError struct{ error }
type fatalError struct{ error }

func (e networkError) Unwrap() error { return e.error }
func (e mediaError) Unwrap() error   { return e.error }
func (e fatalError) Unwrap() error   { return e.error }

// classify maps an engine failure to an error event.
func classify(err error) Event {
	var (
		ne networkError
		me mediaError
	)
	switch {
	case errors.As(err, &ne):
		return Event{Kind: EventError, Class: ClassNetwork, Err: err}
	case errors.As(err, &me):
		return Event{Kind: EventError, Class: ClassMedia, Err: err}
	default:
		return Event{Kind: EventError, Class: ClassFatal, Err: err}
	}
}
