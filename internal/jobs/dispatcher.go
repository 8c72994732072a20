package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/suPer8Hu/voice-audit/internal/common"
)

type Publisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

// Dispatcher records a job row and hands its id to the broker.
// With a nil publisher jobs stay queued until a worker republishes them.
type Dispatcher struct {
	repo *Repo
	pub  Publisher
}

func NewDispatcher(repo *Repo, pub Publisher) *Dispatcher {
	return &Dispatcher{repo: repo, pub: pub}
}

func (d *Dispatcher) Enqueue(ctx context.Context, kind Kind, targetID uint64, idempotencyKey string) (*Job, error) {
	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}

	j := &Job{
		ID:       id,
		Kind:     kind,
		TargetID: targetID,
		Status:   StatusQueued,
	}
	if idempotencyKey != "" {
		j.IdempotencyKey = &idempotencyKey
	}

	job, created, err := d.repo.CreateOrGetExisting(ctx, j)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", kind, err)
	}
	// Enqueue only when a new job was created
	if !created {
		return job, nil
	}

	if d.pub == nil {
		log.Printf("[Dispatcher] no publisher, job stays queued kind=%s job_id=%s target=%d", kind, job.ID, targetID)
		return job, nil
	}
	if err := d.publish(ctx, job); err != nil {
		log.Printf("[Dispatcher] PublishJob failed kind=%s job_id=%s err=%v", kind, job.ID, err)
		return job, fmt.Errorf("publish %s: %w", kind, err)
	}
	return job, nil
}

func (d *Dispatcher) publish(ctx context.Context, j *Job) error {
	if err := d.pub.PublishJob(ctx, j.ID); err != nil {
		return err
	}
	if err := d.repo.MarkPublished(ctx, j.ID); err != nil {
		// the message is out; a missing mark only risks one duplicate delivery
		log.Printf("[Dispatcher] MarkPublished failed job_id=%s err=%v", j.ID, err)
	}
	return nil
}

// Republish pushes queued jobs that never reached the broker.
func (d *Dispatcher) Republish(ctx context.Context, limit int) (int, error) {
	if d.pub == nil {
		return 0, nil
	}
	pending, err := d.repo.ListUnpublished(ctx, limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range pending {
		if err := d.publish(ctx, &pending[i]); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
