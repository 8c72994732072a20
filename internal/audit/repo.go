package audit

import (
	"context"
	"time"

	"github.com/suPer8Hu/voice-audit/internal/models"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Users

func (r *Repo) CreateUser(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *Repo) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) EmailTaken(ctx context.Context, email string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&cnt).Error
	return cnt > 0, err
}

func (r *Repo) SaveUser(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Save(u).Error
}

func (r *Repo) TouchUserLastAudit(ctx context.Context, userID uint64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_audit_at", at).Error
}

// ListUserSessions returns sessions in started_at DESC order (newest first).
func (r *Repo) ListUserSessions(ctx context.Context, userID uint64, limit int) ([]models.AuditSession, error) {
	var out []models.AuditSession
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CompletedSessions returns completed sessions with both timestamps, filtered by column = id.
func (r *Repo) CompletedSessions(ctx context.Context, column string, id uint64) ([]models.AuditSession, error) {
	var out []models.AuditSession
	err := r.db.WithContext(ctx).
		Where(column+" = ? AND status = ?", id, models.SessionCompleted).
		Where("started_at IS NOT NULL AND completed_at IS NOT NULL").
		Find(&out).Error
	return out, err
}

func (r *Repo) CountSessions(ctx context.Context, column string, id uint64, statuses ...models.SessionStatus) (int64, error) {
	q := r.db.WithContext(ctx).Model(&models.AuditSession{}).Where(column+" = ?", id)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var cnt int64
	err := q.Count(&cnt).Error
	return cnt, err
}

// Templates

func (r *Repo) CreateTemplate(ctx context.Context, t *models.AuditTemplate) error {
	return r.db.WithContext(ctx).Omit("Questions").Create(t).Error
}

// CreateTemplateWithQuestions inserts a template and its questions in one transaction.
func (r *Repo) CreateTemplateWithQuestions(ctx context.Context, t *models.AuditTemplate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		qs := t.Questions
		t.Questions = nil
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		for i := range qs {
			qs[i].AuditTemplateID = t.ID
			if err := tx.Create(&qs[i]).Error; err != nil {
				return err
			}
		}
		t.Questions = qs
		return nil
	})
}

func (r *Repo) TemplateNameTaken(ctx context.Context, name string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&models.AuditTemplate{}).Where("name = ?", name).Count(&cnt).Error
	return cnt > 0, err
}

func (r *Repo) ListTemplates(ctx context.Context, activeOnly bool) ([]models.AuditTemplate, error) {
	q := r.db.WithContext(ctx).Order("name ASC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var out []models.AuditTemplate
	err := q.Find(&out).Error
	return out, err
}

func (r *Repo) GetTemplate(ctx context.Context, id uint64, withQuestions bool) (*models.AuditTemplate, error) {
	q := r.db.WithContext(ctx)
	if withQuestions {
		q = q.Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		})
	}
	var t models.AuditTemplate
	if err := q.First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repo) DeleteTemplate(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("audit_template_id = ?", id).Delete(&models.Question{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.AuditTemplate{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// Questions

func (r *Repo) CreateQuestion(ctx context.Context, q *models.Question) error {
	return r.db.WithContext(ctx).Create(q).Error
}

func (r *Repo) GetQuestion(ctx context.Context, id uint64) (*models.Question, error) {
	var q models.Question
	if err := r.db.WithContext(ctx).First(&q, id).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *Repo) MaxSequence(ctx context.Context, templateID uint64) (int, error) {
	var max *int
	err := r.db.WithContext(ctx).Model(&models.Question{}).
		Where("audit_template_id = ?", templateID).
		Select("MAX(sequence)").
		Scan(&max).Error
	if err != nil || max == nil {
		return 0, err
	}
	return *max, nil
}

func (r *Repo) SequenceTaken(ctx context.Context, templateID uint64, seq int) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&models.Question{}).
		Where("audit_template_id = ? AND sequence = ?", templateID, seq).
		Count(&cnt).Error
	return cnt > 0, err
}

func (r *Repo) CountQuestions(ctx context.Context, templateID uint64) (int, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&models.Question{}).
		Where("audit_template_id = ?", templateID).
		Count(&cnt).Error
	return int(cnt), err
}

func (r *Repo) ListQuestions(ctx context.Context, templateID uint64) ([]models.Question, error) {
	var out []models.Question
	err := r.db.WithContext(ctx).
		Where("audit_template_id = ?", templateID).
		Order("sequence ASC").
		Find(&out).Error
	return out, err
}

// QuestionWhere returns the first question of the template matching cond, ordered by sequence.
func (r *Repo) QuestionWhere(ctx context.Context, templateID uint64, desc bool, cond string, args ...any) (*models.Question, error) {
	order := "sequence ASC"
	if desc {
		order = "sequence DESC"
	}
	var q models.Question
	err := r.db.WithContext(ctx).
		Where("audit_template_id = ?", templateID).
		Where(cond, args...).
		Order(order).
		First(&q).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *Repo) SetQuestionAudio(ctx context.Context, id uint64, path string) error {
	return r.db.WithContext(ctx).Model(&models.Question{}).
		Where("id = ?", id).
		Update("audio_path", path).Error
}

// Sessions

func (r *Repo) CreateSession(ctx context.Context, s *models.AuditSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) GetSession(ctx context.Context, id uint64) (*models.AuditSession, error) {
	var s models.AuditSession
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) GetSessionByToken(ctx context.Context, token string) (*models.AuditSession, error) {
	var s models.AuditSession
	if err := r.db.WithContext(ctx).Where("session_token = ?", token).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) TokenExists(ctx context.Context, token string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&models.AuditSession{}).Where("session_token = ?", token).Count(&cnt).Error
	return cnt > 0, err
}

func (r *Repo) SaveSession(ctx context.Context, s *models.AuditSession) error {
	return r.db.WithContext(ctx).Save(s).Error
}

// StaleSessions lists started/in_progress sessions not updated since cutoff.
func (r *Repo) StaleSessions(ctx context.Context, cutoff time.Time, limit int) ([]models.AuditSession, error) {
	var out []models.AuditSession
	err := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?",
			[]models.SessionStatus{models.SessionStarted, models.SessionInProgress}, cutoff).
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// RestartSession saves the reset session and drops its responses and insight atomically.
func (r *Repo) RestartSession(ctx context.Context, s *models.AuditSession) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("audit_session_id = ?", s.ID).Delete(&models.Response{}).Error; err != nil {
			return err
		}
		if err := tx.Where("audit_session_id = ?", s.ID).Delete(&models.AuditInsight{}).Error; err != nil {
			return err
		}
		return tx.Save(s).Error
	})
}

// Responses

func (r *Repo) CreateResponse(ctx context.Context, resp *models.Response) error {
	return r.db.WithContext(ctx).Create(resp).Error
}

func (r *Repo) GetResponse(ctx context.Context, id uint64) (*models.Response, error) {
	var resp models.Response
	if err := r.db.WithContext(ctx).First(&resp, id).Error; err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *Repo) ResponseFor(ctx context.Context, sessionID, questionID uint64) (*models.Response, error) {
	var resp models.Response
	err := r.db.WithContext(ctx).
		Where("audit_session_id = ? AND question_id = ?", sessionID, questionID).
		First(&resp).Error
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *Repo) ListResponses(ctx context.Context, sessionID uint64) ([]models.Response, error) {
	var out []models.Response
	err := r.db.WithContext(ctx).
		Where("audit_session_id = ?", sessionID).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func (r *Repo) CountResponses(ctx context.Context, sessionID uint64) (int, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&models.Response{}).
		Where("audit_session_id = ?", sessionID).
		Count(&cnt).Error
	return int(cnt), err
}

func (r *Repo) LatestRespondedAt(ctx context.Context, sessionID uint64) (*time.Time, error) {
	var resp models.Response
	err := r.db.WithContext(ctx).
		Where("audit_session_id = ? AND responded_at IS NOT NULL", sessionID).
		Order("responded_at DESC").
		Limit(1).
		Find(&resp).Error
	if err != nil || resp.ID == 0 {
		return nil, err
	}
	return resp.RespondedAt, nil
}

func (r *Repo) SaveResponse(ctx context.Context, resp *models.Response) error {
	return r.db.WithContext(ctx).Save(resp).Error
}
