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

	"github.com/unifyp/fyp-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestApplicationFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "topic_id", "preference_rank", "status", "supervisor_notes", "applied_at", "decided_at"}).
		AddRow("a1", "stu1", "t1", 1, string(models.ApplicationStatusPending), "", now, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, topic_id, preference_rank, status, supervisor_notes, applied_at, decided_at FROM applications WHERE id = $1")).
		WithArgs("a1").
		WillReturnRows(rows)

	application, err := repo.FindByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "stu1", application.StudentID)
	assert.Equal(t, models.ApplicationStatusPending, application.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectExec("INSERT INTO applications").WillReturnResult(sqlmock.NewResult(1, 1))

	application := &models.Application{StudentID: "stu1", TopicID: "t1", PreferenceRank: 2}
	err := repo.Create(context.Background(), application)
	require.NoError(t, err)
	assert.NotEmpty(t, application.ID)
	assert.Equal(t, models.ApplicationStatusPending, application.Status)
	assert.False(t, application.AppliedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationCountPendingByStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM applications WHERE student_id = $1 AND status = $2")).
		WithArgs("stu1", models.ApplicationStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountPendingByStudent(context.Background(), "stu1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationApproveTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	decidedAt := time.Now().UTC()
	assignment := &models.Assignment{StudentID: "stu1", TopicID: "t1", SupervisorID: "sup1", Status: models.AssignmentStatusActive}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO assignments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE applications SET status").
		WithArgs("a1", models.ApplicationStatusApproved, "notes", decidedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	rejectedRows := sqlmock.NewRows([]string{"id", "student_id", "topic_id", "preference_rank", "status", "supervisor_notes", "applied_at", "decided_at"}).
		AddRow("a2", "stu1", "t2", 2, string(models.ApplicationStatusRejected), models.AutoRejectNotes, decidedAt, decidedAt)
	mock.ExpectQuery("UPDATE applications SET status").
		WithArgs(models.ApplicationStatusRejected, models.AutoRejectNotes, decidedAt, "stu1", models.ApplicationStatusPending, "a1").
		WillReturnRows(rejectedRows)
	mock.ExpectCommit()

	rejected, err := repo.Approve(context.Background(), "a1", assignment, "notes", decidedAt)
	require.NoError(t, err)
	assert.NotEmpty(t, assignment.ID)
	require.Len(t, rejected, 1)
	assert.Equal(t, "a2", rejected[0].ID)
	assert.Equal(t, models.ApplicationStatusRejected, rejected[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationApproveRollsBackOnInsertFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	decidedAt := time.Now().UTC()
	assignment := &models.Assignment{StudentID: "stu1", TopicID: "t1", SupervisorID: "sup1"}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO assignments").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), "a1", assignment, "", decidedAt)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationCountByStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("PENDING", 12).
		AddRow("APPROVED", 30)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) AS count FROM applications GROUP BY status")).
		WillReturnRows(rows)

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, counts["PENDING"])
	assert.Equal(t, 30, counts["APPROVED"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
