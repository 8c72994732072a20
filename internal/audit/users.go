package audit

import (
	"context"
	"errors"
	"strings"

	"github.com/suPer8Hu/voice-audit/internal/auth"
	"github.com/suPer8Hu/voice-audit/internal/models"
	"github.com/suPer8Hu/voice-audit/internal/scoring"
)

const defaultRecentSessions = 10

type RegisterInput struct {
	Email             string
	Name              string
	Password          string
	PreferredLanguage string
	PreferredVoice    string
	SpeechEnabled     *bool
}

func (s *Service) RegisterUser(ctx context.Context, in RegisterInput) (*models.User, error) {
	u := &models.User{
		Email:             strings.ToLower(strings.TrimSpace(in.Email)),
		Name:              strings.TrimSpace(in.Name),
		PreferredLanguage: in.PreferredLanguage,
		PreferredVoice:    in.PreferredVoice,
		SpeechEnabled:     true,
	}
	if in.SpeechEnabled != nil {
		u.SpeechEnabled = *in.SpeechEnabled
	}
	u.ApplyDefaults()

	v := &ValidationError{}
	if err := u.Validate(); err != nil {
		errors.As(err, &v)
	}
	if in.Password != "" && len(in.Password) < 6 {
		v.Add("password", "is too short (minimum is 6 characters)")
	}
	if u.Email != "" {
		taken, err := s.repo.EmailTaken(ctx, u.Email)
		if err != nil {
			return nil, err
		}
		if taken {
			v.Add("email", "has already been taken")
		}
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	if in.Password != "" {
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}

	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate checks the password of a registered user.
// Unknown emails and passwordless users fail the same way as a wrong password.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if u.PasswordHash == "" || !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	return s.repo.GetUser(ctx, id)
}

type PreferencesInput struct {
	PreferredLanguage *string
	PreferredVoice    *string
	SpeechEnabled     *bool
}

func (s *Service) UpdatePreferences(ctx context.Context, userID uint64, in PreferencesInput) (*models.User, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.PreferredLanguage != nil {
		u.PreferredLanguage = *in.PreferredLanguage
	}
	if in.PreferredVoice != nil {
		u.PreferredVoice = strings.TrimSpace(*in.PreferredVoice)
	}
	if in.SpeechEnabled != nil {
		u.SpeechEnabled = *in.SpeechEnabled
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.SaveUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// RecentSessions returns the user's sessions, newest first.
func (s *Service) RecentSessions(ctx context.Context, userID uint64, limit int) ([]models.AuditSession, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultRecentSessions
	}
	return s.repo.ListUserSessions(ctx, userID, limit)
}

type UserStats struct {
	TotalSessions          int64   `json:"total_sessions"`
	CompletedAudits        int64   `json:"completed_audits"`
	AverageDurationMinutes float64 `json:"average_duration_minutes"`
}

func (s *Service) UserStats(ctx context.Context, userID uint64) (*UserStats, error) {
	total, err := s.repo.CountSessions(ctx, "user_id", userID)
	if err != nil {
		return nil, err
	}
	completed, err := s.repo.CompletedSessions(ctx, "user_id", userID)
	if err != nil {
		return nil, err
	}
	return &UserStats{
		TotalSessions:          total,
		CompletedAudits:        int64(len(completed)),
		AverageDurationMinutes: averageMinutes(completed),
	}, nil
}

// averageMinutes is the mean of completed_at - started_at over sessions, one decimal.
func averageMinutes(sessions []models.AuditSession) float64 {
	if len(sessions) == 0 {
		return 0
	}
	var sum float64
	for i := range sessions {
		sess := &sessions[i]
		sum += sess.CompletedAt.Sub(*sess.StartedAt).Minutes()
	}
	return scoring.Round1(sum / float64(len(sessions)))
}
