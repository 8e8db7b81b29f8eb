package catalog

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// maxBackoff caps the shortened interval used after an empty refresh.
const maxBackoff = 5 * time.Minute

// Refresher rebuilds the catalog periodically in the background.
type Refresher struct {
	catalog  *Catalog
	interval time.Duration
	logger   logrus.FieldLogger
}

// NewRefresher creates a refresh loop for c.
func NewRefresher(c *Catalog, interval time.Duration, logger logrus.FieldLogger) *Refresher {
	return &Refresher{catalog: c, interval: interval, logger: logger}
}

// Start runs the refresh cycle until ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Catalog refresher shutting down")
			return
		case <-ticker.C:
			snap := r.catalog.Refresh(ctx)
			ticker.Reset(r.nextInterval(snap))
		}
	}
}

// nextInterval shortens the wait after an empty catalog so sources that were
// briefly unreachable are retried sooner.
func (r *Refresher) nextInterval(snap Snapshot) time.Duration {
	if !snap.Empty {
		return r.interval
	}
	backoff := r.interval / 2
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	r.logger.WithField("interval", backoff).Warn("Using backoff interval after empty refresh")
	return backoff
}
