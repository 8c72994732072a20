package jobs

import "time"

type Kind string

const (
	KindTranscribe Kind = "transcribe" // target: response id
	KindSynthesize Kind = "synthesize" // target: question id
	KindNotify     Kind = "notify"     // target: insight id
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

type Job struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	Kind     Kind   `gorm:"type:varchar(16);index;not null"`
	TargetID uint64 `gorm:"index;not null"`

	IdempotencyKey *string `gorm:"type:varchar(128);uniqueIndex" json:"idempotency_key"`

	Status   Status `gorm:"type:varchar(16);index;not null"`
	Attempts int    `gorm:"not null"`

	// Filled when failed
	Error *string `gorm:"type:text"`

	// Set once the broker accepted the message; unset rows are republished.
	PublishedAt *time.Time `gorm:"index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Job) TableName() string { return "audit_jobs" }
