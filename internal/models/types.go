package models

import (
	"time"
)

// User is an identity record for one Telegram account. Created on the
// first successful password check; only IsVerified is ever mutated and
// rows are never deleted (clearing history keeps the user).
type User struct {
	ID               uint      `gorm:"primaryKey"`
	TelegramUserID   int64     `gorm:"uniqueIndex;not null"`
	TelegramUserName string    `gorm:"size:255;not null"`
	ChatID           int64     `gorm:"uniqueIndex;not null"`
	IsVerified       bool      `gorm:"not null;default:false"`
	CreatedAt        time.Time

	Questions []Question `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (User) TableName() string {
	return "users"
}

// Question is one user utterance sent to the completion service.
type Question struct {
	ID     uint      `gorm:"primaryKey"`
	UserID uint      `gorm:"index;not null"`
	Text   string    `gorm:"type:text;not null"`
	Asked  time.Time `gorm:"not null;autoCreateTime"`

	Answer *Answer `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}

func (Question) TableName() string {
	return "questions"
}

// Answer is the completion response to exactly one question. It is
// removed together with its question via the FK cascade.
type Answer struct {
	ID         uint      `gorm:"primaryKey"`
	QuestionID uint      `gorm:"index;not null"`
	Text       string    `gorm:"type:text;not null"`
	Answered   time.Time `gorm:"not null;autoCreateTime"`
}

func (Answer) TableName() string {
	return "answers"
}

// QuestionRecord is one history-search hit.
type QuestionRecord struct {
	Text  string
	Asked time.Time
}

// HistoryRecord is one joined question/answer row of a user's history.
type HistoryRecord struct {
	Question string
	Asked    time.Time
	Answer   string
	Answered time.Time
}
