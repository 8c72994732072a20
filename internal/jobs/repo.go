package jobs

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) GetByIdempotencyKey(ctx context.Context, key string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&j).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// CreateOrGetExisting creates the job, or returns the row already holding its idempotency key.
func (r *Repo) CreateOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := r.Create(ctx, job); err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	err := r.Create(ctx, job)
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetByIdempotencyKey(ctx, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}
	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}

// MarkRunning moves a queued (or previously failed, when redelivered) job to running.
func (r *Repo) MarkRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status IN ?", id, []Status{StatusQueued, StatusFailed}).
		Updates(map[string]any{
			"status":   StatusRunning,
			"attempts": gorm.Expr("attempts + 1"),
		}).Error
}

func (r *Repo) MarkSucceeded(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": StatusSucceeded,
			"error":  nil,
		}).Error
}

func (r *Repo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": StatusFailed,
			"error":  errMsg,
		}).Error
}

func (r *Repo) MarkPublished(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Update("published_at", time.Now()).Error
}

// ListQueued returns jobs still waiting, oldest first.
func (r *Repo) ListQueued(ctx context.Context, limit int) ([]Job, error) {
	return r.listQueued(ctx, limit, false)
}

// ListUnpublished returns queued jobs the broker never accepted, oldest first;
// used to republish after a broker outage.
func (r *Repo) ListUnpublished(ctx context.Context, limit int) ([]Job, error) {
	return r.listQueued(ctx, limit, true)
}

func (r *Repo) listQueued(ctx context.Context, limit int, unpublished bool) ([]Job, error) {
	if limit <= 0 {
		limit = 100
	}
	q := r.db.WithContext(ctx).Where("status = ?", StatusQueued)
	if unpublished {
		q = q.Where("published_at IS NULL")
	}
	var out []Job
	err := q.Order("created_at ASC").Limit(limit).Find(&out).Error
	return out, err
}
