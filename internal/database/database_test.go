package database

import (
	"path/filepath"
	"testing"

	"github.com/gpt-qa-tgbot-go/internal/config"
	"github.com/gpt-qa-tgbot-go/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitSQLiteCreatesSchema(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.FatalLevel)

	db, err := Init(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "bot.db")},
	}, log)
	require.NoError(t, err)

	for _, table := range []string{"users", "questions", "answers"} {
		assert.True(t, db.Migrator().HasTable(table), "missing table %s", table)
	}

	var fkEnabled int
	require.NoError(t, db.Raw("PRAGMA foreign_keys").Scan(&fkEnabled).Error)
	assert.Equal(t, 1, fkEnabled)
}

func TestInitSQLiteEnforcesCascade(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.FatalLevel)

	db, err := Init(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "bot.db")},
	}, log)
	require.NoError(t, err)

	user := models.User{TelegramUserID: 1, TelegramUserName: "alice", ChatID: 10, IsVerified: true}
	require.NoError(t, db.Create(&user).Error)

	question := models.Question{UserID: user.ID, Text: "cascade?"}
	require.NoError(t, db.Create(&question).Error)
	require.NoError(t, db.Create(&models.Answer{QuestionID: question.ID, Text: "yes"}).Error)

	require.NoError(t, db.Delete(&question).Error)

	var answers int64
	require.NoError(t, db.Model(&models.Answer{}).Count(&answers).Error)
	assert.Zero(t, answers)
}

func TestInitUnsupportedDriver(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.FatalLevel)

	_, err := Init(&config.DatabaseConfig{Driver: "postgres"}, log)
	assert.Error(t, err)
}
