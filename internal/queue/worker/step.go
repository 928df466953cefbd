package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/communityhub/events/internal/domain/job"
	"github.com/communityhub/events/internal/jobs"
	"github.com/communityhub/events/internal/notifications"
)

// ProcessOne claims and runs a single job. The boolean reports whether a
// job was claimed at all; an empty queue is not an error.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}
		return false, err
	}

	w.prom.JobsInFlight.Inc()
	start := time.Now()
	err = w.execute(ctx, j)
	elapsed := time.Since(start)
	w.prom.JobsInFlight.Dec()

	if err != nil {
		w.handleFailure(ctx, j, err, elapsed)
		return true, nil
	}

	if err := w.repo.MarkDone(ctx, j.ID); err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		return true, err
	}

	w.prom.JobDuration.WithLabelValues(j.Type, "done").Observe(elapsed.Seconds())
	w.prom.JobResults.WithLabelValues(j.Type, "done").Inc()
	w.log.Info("job done", "job_id", j.ID, "type", j.Type, "attempt", j.Attempts, "elapsed", elapsed.String())
	return true, nil
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	switch j.Type {
	case jobs.TypeRegistrationConfirmation:
		return w.sendConfirmation(ctx, j)
	default:
		// unknown types never succeed, fail them outright
		return fmt.Errorf("%w: unknown job type %q", errPermanent, j.Type)
	}
}

func (w *Worker) sendConfirmation(ctx context.Context, j job.Job) error {
	p, err := jobs.DecodeRegistrationConfirmation(j.Payload)
	if err != nil {
		return fmt.Errorf("%w: %v", errPermanent, err)
	}

	// best effort title lookup, the event may be gone by now
	title := ""
	if ev, err := w.events.GetByID(ctx, p.EventID); err == nil {
		title = ev.Title
	}

	return w.notifier.SendRegistrationConfirmation(ctx, notifications.SendRegistrationConfirmationInput{
		Email:        p.UserEmail,
		EventID:      p.EventID,
		EventTitle:   title,
		UserID:       p.UserID,
		RegisteredAt: p.RegisteredAt,
	})
}

var errPermanent = errors.New("permanent job failure")

func (w *Worker) handleFailure(ctx context.Context, j job.Job, execErr error, elapsed time.Duration) {
	permanent := errors.Is(execErr, errPermanent)
	exhausted := j.Attempts >= j.MaxAttempts

	if permanent || exhausted {
		if err := w.repo.MarkFailed(ctx, j.ID, execErr.Error()); err != nil {
			w.log.Error("mark job failed", "job_id", j.ID, "error", err)
		}
		w.prom.JobDuration.WithLabelValues(j.Type, "failed").Observe(elapsed.Seconds())
		w.prom.JobResults.WithLabelValues(j.Type, "failed").Inc()
		w.log.Error("job failed permanently", "job_id", j.ID, "type", j.Type, "attempt", j.Attempts, "error", execErr)
		return
	}

	delay := ExponentialBackoff(j.Attempts)
	runAt := time.Now().Add(delay)

	if err := w.repo.Reschedule(ctx, j.ID, runAt, execErr.Error()); err != nil {
		w.log.Error("reschedule job", "job_id", j.ID, "error", err)
		return
	}

	w.prom.JobDuration.WithLabelValues(j.Type, "retry").Observe(elapsed.Seconds())
	w.prom.JobResults.WithLabelValues(j.Type, "retry").Inc()
	w.log.Warn("job rescheduled", "job_id", j.ID, "type", j.Type, "attempt", j.Attempts, "delay", delay.String(), "error", execErr)
}
