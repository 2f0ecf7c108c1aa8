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

func newSessionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func sessionRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "course_id", "session_date", "title", "start_time", "end_time", "location", "created_at", "updated_at"})
}

func TestSessionRepositoryExistsOnDate(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM course_sessions WHERE course_id = $1 AND session_date = $2 LIMIT 1")).
		WithArgs("c1", date).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	exists, err := repo.ExistsOnDate(context.Background(), db, "c1", date)
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM course_sessions WHERE course_id = $1 AND session_date = $2 LIMIT 1")).
		WithArgs("c2", date).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	exists, err = repo.ExistsOnDate(context.Background(), db, "c2", date)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryTeacherCounts(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	weekEnd := date.AddDate(0, 0, 6)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM course_sessions s JOIN courses c ON c.id = s.course_id WHERE c.teacher_id = $1 AND s.session_date = $2")).
		WithArgs("t1", date).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountForTeacherOnDate(context.Background(), db, "t1", date)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM course_sessions s JOIN courses c ON c.id = s.course_id WHERE c.teacher_id = $1 AND s.session_date >= $2 AND s.session_date <= $3")).
		WithArgs("t1", date, weekEnd).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err = repo.CountForTeacherInRange(context.Background(), db, "t1", date, weekEnd)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryLastMatchingTitle(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)
	date := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY session_date DESC LIMIT 1")).
		WithArgs("c1", "Lab").
		WillReturnRows(sessionRow().AddRow("s1", "c1", date, "Lab", nil, nil, nil, time.Now(), time.Now()))

	session, err := repo.LastMatchingTitle(context.Background(), db, "c1", "Lab")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "Lab", session.Title)
	assert.Equal(t, date, session.SessionDate)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY session_date DESC LIMIT 1")).
		WithArgs("c1", "Project").
		WillReturnRows(sessionRow())

	session, err = repo.LastMatchingTitle(context.Background(), db, "c1", "Project")
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryInsertInsideTx(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO course_sessions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	session := &models.CourseSession{
		CourseID:    "c1",
		SessionDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Title:       models.TitleLecture,
	}
	require.NoError(t, repo.Insert(context.Background(), tx, session))
	assert.NotEmpty(t, session.ID)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
