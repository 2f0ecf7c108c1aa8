package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-ops/institute-api/internal/models"
)

func newSettingRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSettingRepositoryListAll(t *testing.T) {
	db, mock, cleanup := newSettingRepoMock(t)
	defer cleanup()
	repo := NewSettingRepository(db)

	rows := sqlmock.NewRows([]string{"key", "value", "type", "description", "updated_by", "updated_at"}).
		AddRow("LAB_GENERATE_EVERY_N", "3", "INTEGER", nil, nil, time.Now()).
		AddRow("ALLOW_WEEKEND_SESSIONS", "false", "BOOLEAN", nil, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT key, value, type, description, updated_by, updated_at FROM settings ORDER BY key ASC")).
		WillReturnRows(rows)

	settings, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, settings, 2)
	assert.Equal(t, "LAB_GENERATE_EVERY_N", settings[0].Key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newSettingRepoMock(t)
	defer cleanup()
	repo := NewSettingRepository(db)

	mock.ExpectExec("INSERT INTO settings").
		WillReturnResult(sqlmock.NewResult(1, 1))

	setting := &models.Setting{Key: "TEACHER_MAX_SESSIONS_PER_DAY", Value: "5", Type: models.SettingTypeInteger}
	require.NoError(t, repo.Upsert(context.Background(), setting))
	assert.False(t, setting.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
