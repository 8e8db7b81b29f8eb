package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voyagen/worldtv/internal/cache"
	"github.com/voyagen/worldtv/internal/models"
	"github.com/voyagen/worldtv/internal/player"
	"github.com/voyagen/worldtv/internal/store"
)

// ErrQueueFull is returned when the in-process watch queue is saturated.
var ErrQueueFull = errors.New("watch queue full")

const (
	popTimeout  = 5 * time.Second
	pushTimeout = 2 * time.Second
	outboxSize  = 256
)

// WatchQueue transports watch jobs from sessions to the history worker.
type WatchQueue interface {
	// Push enqueues without blocking on the consumer.
	Push(ctx context.Context, job cache.WatchJob) error
	// Pop waits up to timeout for a job; (nil, nil) means none arrived.
	Pop(ctx context.Context, timeout time.Duration) (*cache.WatchJob, error)
}

// MemoryQueue is a bounded in-process WatchQueue.
type MemoryQueue struct {
	jobs chan cache.WatchJob
}

// NewMemoryQueue creates a queue holding at most size pending jobs.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 256
	}
	return &MemoryQueue{jobs: make(chan cache.WatchJob, size)}
}

func (q *MemoryQueue) Push(_ context.Context, job cache.WatchJob) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Pop(ctx context.Context, timeout time.Duration) (*cache.WatchJob, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case job := <-q.jobs:
		return &job, nil
	case <-t.C:
		return nil, nil
	case <-ctx.Done():
		return nil, nil
	}
}

// RedisQueue is a WatchQueue shared by every replica through a Redis list.
type RedisQueue struct {
	redis *cache.Redis
	key   string
}

// NewRedisQueue creates a queue on the default watch list key.
func NewRedisQueue(r *cache.Redis) *RedisQueue {
	return &RedisQueue{redis: r, key: cache.DefaultWatchQueue}
}

func (q *RedisQueue) Push(ctx context.Context, job cache.WatchJob) error {
	return cache.Enqueue(ctx, q.redis, q.key, job)
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (*cache.WatchJob, error) {
	return cache.Dequeue(ctx, q.redis, q.key, timeout)
}

// WatchRecorder records opened channels into the store off the playback
// path. Reporters hand jobs to an in-process outbox without blocking; Run
// forwards the outbox to the queue and drains the queue into the store.
type WatchRecorder struct {
	queue  WatchQueue
	store  store.Store
	logger logrus.FieldLogger
	now    func() time.Time
	outbox chan cache.WatchJob
}

// NewWatchRecorder creates a recorder. Call Run to start persisting.
func NewWatchRecorder(q WatchQueue, s store.Store, logger logrus.FieldLogger) *WatchRecorder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &WatchRecorder{
		queue:  q,
		store:  s,
		logger: logger.WithField("component", "watch-recorder"),
		now:    time.Now,
		outbox: make(chan cache.WatchJob, outboxSize),
	}
}

// Reporter returns the player.WatchReporter for one user.
func (w *WatchRecorder) Reporter(userID string) player.WatchReporter {
	return userReporter{w: w, userID: userID}
}

type userReporter struct {
	w      *WatchRecorder
	userID string
}

// RecordWatch stamps the open time and never waits on the queue.
func (r userReporter) RecordWatch(ch models.Channel) {
	job := cache.WatchJob{UserID: r.userID, Channel: ch, At: r.w.now().UTC()}
	select {
	case r.w.outbox <- job:
	default:
		r.w.logger.WithField("user", r.userID).Warn("Watch outbox full, dropping event")
	}
}

// forward moves outbox jobs onto the shared queue.
func (w *WatchRecorder) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.outbox:
			pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
			if err := w.queue.Push(pushCtx, job); err != nil {
				w.logger.WithError(err).WithField("user", job.UserID).Warn("Dropping watch event")
			}
			cancel()
		}
	}
}

// Run persists queued watch jobs until ctx is cancelled.
func (w *WatchRecorder) Run(ctx context.Context) {
	w.logger.Info("Watch recorder started")
	go w.forward(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Watch recorder stopping")
			return
		default:
		}

		job, err := w.queue.Pop(ctx, popTimeout)
		if err != nil {
			w.logger.WithError(err).Warn("Watch queue pop failed")
			select {
			case <-ctx.Done():
			case <-time.After(2 * time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}
		if err := w.store.RecordWatch(ctx, job.UserID, job.Channel, job.At); err != nil {
			w.logger.WithError(err).WithField("user", job.UserID).Warn("Recording watch failed")
		}
	}
}
