package jobs

import (
	"context"
	"fmt"
	"log"
	"time"
)

type HandlerFunc func(ctx context.Context, targetID uint64) error

// Runner executes job rows by kind and records their outcome.
type Runner struct {
	repo     *Repo
	handlers map[Kind]HandlerFunc
}

func NewRunner(repo *Repo) *Runner {
	return &Runner{repo: repo, handlers: make(map[Kind]HandlerFunc)}
}

func (r *Runner) Handle(kind Kind, h HandlerFunc) {
	r.handlers[kind] = h
}

func (r *Runner) Run(ctx context.Context, jobID string) error {
	jobStart := time.Now()

	if err := r.repo.MarkRunning(ctx, jobID); err != nil {
		return err
	}

	j, err := r.repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status != StatusRunning {
		// already handled by an earlier delivery
		log.Printf("job_skip job=%s status=%s", jobID, j.Status)
		return nil
	}

	h, ok := r.handlers[j.Kind]
	if !ok {
		err := fmt.Errorf("no handler for job kind %q", j.Kind)
		_ = r.repo.MarkFailed(ctx, jobID, err.Error())
		return err
	}

	t0 := time.Now()
	err = h(ctx, j.TargetID)
	handleCost := time.Since(t0)

	if err != nil {
		_ = r.repo.MarkFailed(ctx, jobID, err.Error())
		log.Printf("job_timing_failed job=%s kind=%s target=%d handle=%s total=%s err=%v",
			jobID, j.Kind, j.TargetID, handleCost, time.Since(jobStart), err,
		)
		return err
	}

	if err := r.repo.MarkSucceeded(ctx, jobID); err != nil {
		return err
	}

	if total := time.Since(jobStart); total > 2*time.Second {
		log.Printf("job_timing job=%s kind=%s target=%d handle=%s total=%s",
			jobID, j.Kind, j.TargetID, handleCost, total,
		)
	}
	return nil
}
