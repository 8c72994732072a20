package insight

import (
	"context"

	"github.com/suPer8Hu/voice-audit/internal/models"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) GetBySession(ctx context.Context, sessionID uint64) (*models.AuditInsight, error) {
	var in models.AuditInsight
	if err := r.db.WithContext(ctx).Where("audit_session_id = ?", sessionID).First(&in).Error; err != nil {
		return nil, err
	}
	return &in, nil
}

func (r *Repo) GetByID(ctx context.Context, id uint64) (*models.AuditInsight, error) {
	var in models.AuditInsight
	if err := r.db.WithContext(ctx).First(&in, id).Error; err != nil {
		return nil, err
	}
	return &in, nil
}

func (r *Repo) Create(ctx context.Context, in *models.AuditInsight) error {
	return r.db.WithContext(ctx).Create(in).Error
}

func (r *Repo) Save(ctx context.Context, in *models.AuditInsight) error {
	return r.db.WithContext(ctx).Save(in).Error
}

func (r *Repo) GetSession(ctx context.Context, id uint64) (*models.AuditSession, error) {
	var s models.AuditSession
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) GetTemplate(ctx context.Context, id uint64) (*models.AuditTemplate, error) {
	var t models.AuditTemplate
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repo) ListQuestions(ctx context.Context, templateID uint64) ([]models.Question, error) {
	var out []models.Question
	err := r.db.WithContext(ctx).
		Where("audit_template_id = ?", templateID).
		Order("sequence ASC").
		Find(&out).Error
	return out, err
}

func (r *Repo) ListResponses(ctx context.Context, sessionID uint64) ([]models.Response, error) {
	var out []models.Response
	err := r.db.WithContext(ctx).
		Where("audit_session_id = ?", sessionID).
		Order("id ASC").
		Find(&out).Error
	return out, err
}
