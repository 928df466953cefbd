// Package worker drains the jobs table. Each instance claims one job at a
// time with SKIP LOCKED semantics, so running several copies is safe.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/communityhub/events/internal/domain/event"
	"github.com/communityhub/events/internal/domain/job"
	"github.com/communityhub/events/internal/notifications"
	"github.com/communityhub/events/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

type EventsGetter interface {
	GetByID(ctx context.Context, id string) (event.Event, error)
}

type Config struct {
	WorkerID      string
	PollInterval  time.Duration
	StaleLockTTL  time.Duration
	ReapInterval  time.Duration
	ShutdownGrace time.Duration
}

func DefaultConfig() Config {
	host, _ := os.Hostname()
	return Config{
		WorkerID:      fmt.Sprintf("%s-%d", host, os.Getpid()),
		PollInterval:  500 * time.Millisecond,
		StaleLockTTL:  2 * time.Minute,
		ReapInterval:  30 * time.Second,
		ShutdownGrace: 10 * time.Second,
	}
}

type Worker struct {
	cfg      Config
	repo     JobsRepository
	events   EventsGetter
	notifier notifications.Notifier
	prom     *observability.Prom
	log      *slog.Logger

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, repo JobsRepository, events EventsGetter, notifier notifications.Notifier, prom *observability.Prom, log *slog.Logger) *Worker {
	if cfg.WorkerID == "" {
		cfg = DefaultConfig()
	}
	return &Worker{
		cfg:      cfg,
		repo:     repo,
		events:   events,
		notifier: notifier,
		prom:     prom,
		log:      log,
	}
}

// Run polls until ctx is cancelled. After a successful claim it keeps
// draining without waiting for the next tick, so a backlog clears fast.
func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	reaper := time.NewTicker(w.cfg.ReapInterval)
	defer reaper.Stop()

	w.log.Info("worker started", "worker_id", w.cfg.WorkerID, "poll_interval", w.cfg.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker received shutdown signal", "worker_id", w.cfg.WorkerID)
			return nil

		case <-reaper.C:
			n, err := w.repo.RequeueStaleProcessing(ctx, w.cfg.StaleLockTTL)
			if err != nil {
				w.log.Error("requeue stale jobs", "error", err)
				continue
			}
			if n > 0 {
				w.log.Warn("requeued stale jobs", "count", n)
			}

		case <-ticker.C:
			for {
				processed, err := w.ProcessOne(ctx)
				if err != nil {
					w.log.Error("process job", "error", err)
					break
				}
				if !processed {
					break
				}
				if ctx.Err() != nil {
					break
				}
			}
		}
	}
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}
