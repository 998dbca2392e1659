package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gpt-qa-tgbot-go/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service is the only component with read/write access to users,
// questions and answers. Every method is one logical transaction.
// Storage failures are logged here and returned as errors; an empty
// result is an empty slice, never an error.
type Service interface {
	CreateUser(ctx context.Context, telegramUserID int64, name string, chatID int64, verified bool) error
	GetUser(ctx context.Context, telegramUserID int64) (*models.User, error)
	SetVerified(ctx context.Context, telegramUserID int64) error
	RecordQuestion(ctx context.Context, telegramUserID int64, text string) (uint, error)
	RecordAnswer(ctx context.Context, questionID uint, text string) error
	ClearHistory(ctx context.Context, telegramUserID int64) error
	Search(ctx context.Context, telegramUserID int64, substring string) ([]models.QuestionRecord, error)
	View(ctx context.Context, telegramUserID int64) ([]models.HistoryRecord, error)
}

// GormService implements Service on a gorm handle.
type GormService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewService creates a history service on the given database handle.
func NewService(db *gorm.DB, logger *logrus.Logger) *GormService {
	return &GormService{
		db:     db,
		logger: logger,
	}
}

// CreateUser inserts exactly one user row. A duplicate telegram id or
// chat id violates a unique constraint and leaves existing rows intact.
func (s *GormService) CreateUser(ctx context.Context, telegramUserID int64, name string, chatID int64, verified bool) error {
	user := models.User{
		TelegramUserID:   telegramUserID,
		TelegramUserName: name,
		ChatID:           chatID,
		IsVerified:       verified,
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		s.logger.WithError(err).WithField("user_id", telegramUserID).Error("Failed to register user")
		return fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.WithField("user_id", telegramUserID).Info("Registered new user")
	return nil
}

// GetUser returns the user with the given telegram id, or nil when no
// such user exists.
func (s *GormService) GetUser(ctx context.Context, telegramUserID int64) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("telegram_user_id = ?", telegramUserID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logger.WithError(err).WithField("user_id", telegramUserID).Error("Failed to look up user")
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// SetVerified flips the verification flag for an existing user.
func (s *GormService) SetVerified(ctx context.Context, telegramUserID int64) error {
	res := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("telegram_user_id = ?", telegramUserID).
		Update("is_verified", true)
	if res.Error != nil {
		s.logger.WithError(res.Error).WithField("user_id", telegramUserID).Error("Failed to verify user")
		return fmt.Errorf("failed to verify user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %d not found", telegramUserID)
	}
	return nil
}

// RecordQuestion inserts a question owned by the resolved user and
// returns its id for the later answer insert.
func (s *GormService) RecordQuestion(ctx context.Context, telegramUserID int64, text string) (uint, error) {
	user, err := s.resolveUser(ctx, telegramUserID)
	if err != nil {
		return 0, err
	}

	question := models.Question{
		UserID: user.ID,
		Text:   text,
	}
	if err := s.db.WithContext(ctx).Create(&question).Error; err != nil {
		s.logger.WithError(err).WithField("user_id", telegramUserID).Error("Failed to record question")
		return 0, fmt.Errorf("failed to record question: %w", err)
	}

	return question.ID, nil
}

// RecordAnswer inserts the answer for one question.
func (s *GormService) RecordAnswer(ctx context.Context, questionID uint, text string) error {
	answer := models.Answer{
		QuestionID: questionID,
		Text:       text,
	}
	if err := s.db.WithContext(ctx).Create(&answer).Error; err != nil {
		s.logger.WithError(err).WithField("question_id", questionID).Error("Failed to record answer")
		return fmt.Errorf("failed to record answer: %w", err)
	}
	return nil
}

// ClearHistory deletes every question owned by the user. Answers go
// with them via the question -> answer cascade.
func (s *GormService) ClearHistory(ctx context.Context, telegramUserID int64) error {
	user, err := s.resolveUser(ctx, telegramUserID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Where("user_id = ?", user.ID).Delete(&models.Question{}).Error; err != nil {
		s.logger.WithError(err).WithField("user_id", telegramUserID).Error("Failed to clear history")
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Search matches the user's question texts case-insensitively against
// the substring and returns (text, asked) pairs.
func (s *GormService) Search(ctx context.Context, telegramUserID int64, substring string) ([]models.QuestionRecord, error) {
	user, err := s.resolveUser(ctx, telegramUserID)
	if err != nil {
		return nil, err
	}

	var records []models.QuestionRecord
	err = s.db.WithContext(ctx).
		Model(&models.Question{}).
		Select("text, asked").
		Where("user_id = ?", user.ID).
		Where("LOWER(text) LIKE ? ESCAPE '!'", "%"+escapeLike(strings.ToLower(substring))+"%").
		Order("asked").
		Scan(&records).Error
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"user_id":   telegramUserID,
			"substring": substring,
		}).Error("Failed to search history")
		return nil, fmt.Errorf("failed to search history: %w", err)
	}
	return records, nil
}

// View returns the user's question/answer pairs as an inner join, so
// questions that never got an answer are not shown.
func (s *GormService) View(ctx context.Context, telegramUserID int64) ([]models.HistoryRecord, error) {
	user, err := s.resolveUser(ctx, telegramUserID)
	if err != nil {
		return nil, err
	}

	var records []models.HistoryRecord
	err = s.db.WithContext(ctx).
		Model(&models.Question{}).
		Select("questions.text AS question, questions.asked, answers.text AS answer, answers.answered").
		Joins("INNER JOIN answers ON answers.question_id = questions.id").
		Where("questions.user_id = ?", user.ID).
		Order("questions.asked").
		Scan(&records).Error
	if err != nil {
		s.logger.WithError(err).WithField("user_id", telegramUserID).Error("Failed to view history")
		return nil, fmt.Errorf("failed to view history: %w", err)
	}
	return records, nil
}

// escapeLike keeps user input from acting as LIKE wildcards. The '!'
// escape character works the same on sqlite and mysql.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "!", "!!")
	s = strings.ReplaceAll(s, "%", "!%")
	s = strings.ReplaceAll(s, "_", "!_")
	return s
}

func (s *GormService) resolveUser(ctx context.Context, telegramUserID int64) (*models.User, error) {
	user, err := s.GetUser(ctx, telegramUserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %d not found", telegramUserID)
	}
	return user, nil
}
