package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifyp/fyp-api/internal/models"
)

func TestAssignmentExistsActiveForStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM assignments WHERE student_id = $1 AND status = $2 LIMIT 1")).
		WithArgs("stu1", models.AssignmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsActiveForStudent(context.Background(), "stu1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentExistsActiveForStudentNone(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM assignments WHERE student_id = $1 AND status = $2 LIMIT 1")).
		WithArgs("stu1", models.AssignmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err := repo.ExistsActiveForStudent(context.Background(), "stu1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentComplete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	completedAt := time.Now().UTC()
	mock.ExpectExec("UPDATE assignments SET status").
		WithArgs("as1", models.AssignmentStatusCompleted, completedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Complete(context.Background(), "as1", completedAt)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentReassignTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	replacement := &models.Assignment{StudentID: "stu1", TopicID: "t2", SupervisorID: "sup2"}

	// The supersede must not touch replaced_by and the link must come after
	// the insert: replaced_by references assignments(id) and the FK is
	// checked per statement, so pointing at a not-yet-inserted row fails.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE assignments SET status = $2 WHERE id = $1")).
		WithArgs("as1", models.AssignmentStatusChanged).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO assignments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE assignments SET replaced_by = $2 WHERE id = $1")).
		WithArgs("as1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Reassign(context.Background(), "as1", replacement)
	require.NoError(t, err)
	assert.NotEmpty(t, replacement.ID)
	assert.Equal(t, models.AssignmentStatusActive, replacement.Status)
	assert.False(t, replacement.AssignedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentReassignRollsBackOnInsertFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE assignments SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO assignments").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.Reassign(context.Background(), "as1", &models.Assignment{StudentID: "stu1", TopicID: "t2"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentCountActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM assignments WHERE status = $1")).
		WithArgs(models.AssignmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := repo.CountActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
