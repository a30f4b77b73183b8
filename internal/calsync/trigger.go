package calsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"taskmirror/internal/model"
	pkgLog "taskmirror/pkg/log"
)

const (
	defaultWorkers      = 4
	defaultQueueSize    = 256
	defaultMaxRetries   = 3
	defaultRetryBackoff = 2 * time.Second
	defaultJobTimeout   = 30 * time.Second

	// pendingTTL bounds how long a queued key suppresses re-enqueues. Keys
	// are removed when a worker picks the job up; the TTL only covers keys
	// orphaned by a dropped job racing the worker.
	pendingTTL = 5 * time.Minute
)

// TriggerConfig controls the background sync worker pool. Zero values
// select defaults.
type TriggerConfig struct {
	Workers      int
	QueueSize    int
	MaxRetries   int
	RetryBackoff time.Duration
	JobTimeout   time.Duration
}

type syncJob struct {
	UserID string
	Ref    model.UnitRef
}

// Trigger is the fire-and-forget entry point for unit syncs. Mutating call
// sites enqueue and return immediately; a bounded worker pool drains the
// queue. A full queue drops the job, which is safe because the
// reconciliation sweep re-converges everything later.
type Trigger struct {
	svc *Service
	l   pkgLog.Logger
	cfg TriggerConfig

	jobs chan syncJob

	// pending dedupes queued keys: a job already waiting will observe the
	// latest stored state when it runs, so a second enqueue adds nothing.
	pending *expirable.LRU[string, struct{}]

	cancel context.CancelFunc
	done   chan struct{}
}

// NewTrigger creates a Trigger. Call Start before enqueuing.
func NewTrigger(svc *Service, l pkgLog.Logger, cfg TriggerConfig) *Trigger {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = defaultJobTimeout
	}

	return &Trigger{
		svc:     svc,
		l:       l,
		cfg:     cfg,
		jobs:    make(chan syncJob, cfg.QueueSize),
		pending: expirable.NewLRU[string, struct{}](cfg.QueueSize, nil, pendingTTL),
		done:    make(chan struct{}),
	}
}

// Start launches the worker pool. Workers run on a background context
// detached from any request; Stop cancels it.
func (t *Trigger) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	go func() {
		defer close(t.done)
		sem := make(chan struct{}, t.cfg.Workers)
		for job := range t.jobs {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			go func(job syncJob) {
				defer func() { <-sem }()
				t.run(ctx, job)
			}(job)
		}
		// Drain worker slots so in-flight jobs finish before done closes.
		for i := 0; i < t.cfg.Workers; i++ {
			sem <- struct{}{}
		}
	}()
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (t *Trigger) Stop() {
	close(t.jobs)
	<-t.done
	if t.cancel != nil {
		t.cancel()
	}
}

// Enqueue schedules a sync for one unit and returns immediately. Dropped
// when the queue is full or a job for the same unit is already waiting.
func (t *Trigger) Enqueue(ctx context.Context, userID string, ref model.UnitRef) {
	key := ref.Key()
	if _, ok := t.pending.Get(key); ok {
		return
	}
	t.pending.Add(key, struct{}{})

	select {
	case t.jobs <- syncJob{UserID: userID, Ref: ref}:
	default:
		t.pending.Remove(key)
		t.l.Warnf(ctx, "calsync.Trigger.Enqueue: queue full, dropping sync for %s", key)
	}
}

func (t *Trigger) run(ctx context.Context, job syncJob) {
	t.pending.Remove(job.Ref.Key())

	var err error
	for attempt := 0; attempt < t.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := t.cfg.RetryBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
		}

		err = t.syncOnce(ctx, job)
		if err == nil {
			return
		}
		if errors.Is(err, ErrSyncDisabled) || ctx.Err() != nil {
			return
		}
		t.l.Warnf(ctx, "calsync.Trigger.run: sync %s attempt %d/%d: %v", job.Ref.Key(), attempt+1, t.cfg.MaxRetries, err)
	}

	t.l.Errorf(ctx, "calsync.Trigger.run: giving up on %s after %d attempts: %v", job.Ref.Key(), t.cfg.MaxRetries, err)
}

func (t *Trigger) syncOnce(ctx context.Context, job syncJob) error {
	jobCtx, cancel := context.WithTimeout(ctx, t.cfg.JobTimeout)
	defer cancel()

	if err := t.svc.SyncUnit(jobCtx, job.UserID, job.Ref); err != nil {
		return fmt.Errorf("sync unit %s: %w", job.Ref.Key(), err)
	}
	return nil
}
