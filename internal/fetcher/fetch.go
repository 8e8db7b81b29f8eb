package fetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/sirupsen/logrus"

	"github.com/voyagen/worldtv/internal/metrics"
	"github.com/voyagen/worldtv/internal/models"
)

// ErrUnexpectedStatus is returned by Get when the response is not 2xx.
var ErrUnexpectedStatus = errors.New("unexpected status code")

// Fetcher retrieves playlist documents and parses them. Each retrieval is a
// single GET with no retry.
type Fetcher struct {
	client    *http.Client
	userAgent string
	opts      ParseOptions
	logger    logrus.FieldLogger
}

// New creates a Fetcher. timeout bounds the whole request including the body.
func New(userAgent string, timeout time.Duration, opts ParseOptions, logger logrus.FieldLogger) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		opts:      opts,
		logger:    logger,
	}
}

// WithClient replaces the HTTP client (tests, shared transports).
func (f *Fetcher) WithClient(c *http.Client) *Fetcher {
	f.client = c
	return f
}

// Fetch fetches the playlist at url and parses it. Any failure is logged
// and yields an empty result; it never fails past this boundary.
func (f *Fetcher) Fetch(ctx context.Context, url string) []models.Channel {
	body, err := f.Get(ctx, url)
	if err != nil {
		result := "error"
		if errors.Is(err, ErrUnexpectedStatus) {
			result = "status"
		}
		metrics.PlaylistFetches.WithLabelValues(result).Inc()
		f.logger.WithError(err).WithField("url", url).Warn("Playlist source unavailable")
		return []models.Channel{}
	}
	defer body.Close()

	channels, err := ParseReader(body, f.opts)
	if err != nil {
		// Keep what was parsed before the read failure.
		f.logger.WithError(err).WithField("url", url).Warn("Playlist read interrupted")
	}
	if channels == nil {
		channels = []models.Channel{}
	}
	metrics.PlaylistFetches.WithLabelValues("ok").Inc()
	f.logger.WithFields(logrus.Fields{"url": url, "channels": len(channels)}).Debug("Fetched playlist")
	return channels
}

// Get performs the GET and returns the decoded body. Caller must close it.
func (f *Fetcher) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("NewRequest: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept-Encoding", "br, gzip")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Do: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return decodeBody(resp)
}

type decodedBody struct {
	io.Reader
	raw io.Closer
}

func (d *decodedBody) Close() error { return d.raw.Close() }

func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		return &decodedBody{Reader: brotli.NewReader(resp.Body), raw: resp.Body}, nil
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return &decodedBody{Reader: zr, raw: resp.Body}, nil
	default:
		return resp.Body, nil
	}
}
