package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unifyp/fyp-api/internal/models"
	appErrors "github.com/unifyp/fyp-api/pkg/errors"
)

type mockAssignmentRepo struct {
	assignments map[string]models.Assignment
	completed   []string
	reassigned  map[string]*models.Assignment
	reassignErr error
}

func (m *mockAssignmentRepo) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error) {
	var list []models.AssignmentDetail
	for _, a := range m.assignments {
		list = append(list, models.AssignmentDetail{Assignment: a})
	}
	return list, len(list), nil
}

func (m *mockAssignmentRepo) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	if a, ok := m.assignments[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAssignmentRepo) Complete(ctx context.Context, id string, completedAt time.Time) error {
	m.completed = append(m.completed, id)
	if a, ok := m.assignments[id]; ok {
		a.Status = models.AssignmentStatusCompleted
		a.CompletedAt = &completedAt
		m.assignments[id] = a
	}
	return nil
}

func (m *mockAssignmentRepo) Reassign(ctx context.Context, oldID string, replacement *models.Assignment) error {
	if m.reassignErr != nil {
		return m.reassignErr
	}
	if m.reassigned == nil {
		m.reassigned = make(map[string]*models.Assignment)
	}
	if replacement.ID == "" {
		replacement.ID = "new-assignment"
	}
	m.reassigned[oldID] = replacement
	if a, ok := m.assignments[oldID]; ok {
		a.Status = models.AssignmentStatusChanged
		a.ReplacedBy = &replacement.ID
		m.assignments[oldID] = a
	}
	return nil
}

func newAssignmentService(repo *mockAssignmentRepo, topics *mockTopicReader) (*AssignmentService, *mockAuditWriter) {
	audit := &mockAuditWriter{}
	return NewAssignmentService(repo, topics, audit, validator.New(), zap.NewNop()), audit
}

func TestAssignmentServiceComplete(t *testing.T) {
	repo := &mockAssignmentRepo{assignments: map[string]models.Assignment{
		"as1": {ID: "as1", StudentID: "stu1", TopicID: "t1", SupervisorID: "sup1", Status: models.AssignmentStatusActive},
	}}
	svc, audit := newAssignmentService(repo, &mockTopicReader{})

	assignment, err := svc.Complete(context.Background(), "as1", "sup1")
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentStatusCompleted, assignment.Status)
	assert.NotNil(t, assignment.CompletedAt)
	assert.Contains(t, repo.completed, "as1")
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionAssignmentComplete, audit.entries[0].Action)
}

func TestAssignmentServiceCompleteWrongSupervisor(t *testing.T) {
	repo := &mockAssignmentRepo{assignments: map[string]models.Assignment{
		"as1": {ID: "as1", SupervisorID: "sup1", Status: models.AssignmentStatusActive},
	}}
	svc, _ := newAssignmentService(repo, &mockTopicReader{})

	_, err := svc.Complete(context.Background(), "as1", "sup2")
	assertAppError(t, err, appErrors.ErrForbidden.Code)
}

func TestAssignmentServiceCompleteNotActive(t *testing.T) {
	repo := &mockAssignmentRepo{assignments: map[string]models.Assignment{
		"as1": {ID: "as1", SupervisorID: "sup1", Status: models.AssignmentStatusCompleted},
	}}
	svc, _ := newAssignmentService(repo, &mockTopicReader{})

	_, err := svc.Complete(context.Background(), "as1", "sup1")
	assertAppError(t, err, appErrors.ErrInvalidState.Code)
}

func TestAssignmentServiceReassign(t *testing.T) {
	repo := &mockAssignmentRepo{assignments: map[string]models.Assignment{
		"as1": {ID: "as1", StudentID: "stu1", TopicID: "t1", SupervisorID: "sup1", Status: models.AssignmentStatusActive},
	}}
	topics := &mockTopicReader{topics: map[string]*models.Topic{"t2": activeTopic("t2", "sup2")}}
	svc, audit := newAssignmentService(repo, topics)

	replacement, err := svc.Reassign(context.Background(), "as1", "admin1", ReassignRequest{TargetTopicID: "t2"})
	require.NoError(t, err)
	assert.Equal(t, "t2", replacement.TopicID)
	assert.Equal(t, "sup2", replacement.SupervisorID)
	assert.Equal(t, models.AssignmentStatusActive, replacement.Status)
	assert.Equal(t, models.AssignmentStatusChanged, repo.assignments["as1"].Status)
	require.NotNil(t, repo.assignments["as1"].ReplacedBy)
	assert.Equal(t, replacement.ID, *repo.assignments["as1"].ReplacedBy)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionAssignmentReassign, audit.entries[0].Action)
}

func TestAssignmentServiceReassignSameTopic(t *testing.T) {
	repo := &mockAssignmentRepo{assignments: map[string]models.Assignment{
		"as1": {ID: "as1", TopicID: "t1", Status: models.AssignmentStatusActive},
	}}
	svc, _ := newAssignmentService(repo, &mockTopicReader{})

	_, err := svc.Reassign(context.Background(), "as1", "admin1", ReassignRequest{TargetTopicID: "t1"})
	assertAppError(t, err, appErrors.ErrInvalidState.Code)
}

func TestAssignmentServiceReassignInactiveTarget(t *testing.T) {
	repo := &mockAssignmentRepo{assignments: map[string]models.Assignment{
		"as1": {ID: "as1", TopicID: "t1", Status: models.AssignmentStatusActive},
	}}
	topics := &mockTopicReader{topics: map[string]*models.Topic{"t2": {ID: "t2", SupervisorID: "sup2", Status: models.TopicStatusArchived}}}
	svc, _ := newAssignmentService(repo, topics)

	_, err := svc.Reassign(context.Background(), "as1", "admin1", ReassignRequest{TargetTopicID: "t2"})
	assertAppError(t, err, appErrors.ErrInvalidState.Code)
}

func TestAssignmentServiceReassignUniqueViolation(t *testing.T) {
	repo := &mockAssignmentRepo{
		assignments: map[string]models.Assignment{
			"as1": {ID: "as1", TopicID: "t1", Status: models.AssignmentStatusActive},
		},
		reassignErr: &pq.Error{Code: "23505"},
	}
	topics := &mockTopicReader{topics: map[string]*models.Topic{"t2": activeTopic("t2", "sup2")}}
	svc, _ := newAssignmentService(repo, topics)

	_, err := svc.Reassign(context.Background(), "as1", "admin1", ReassignRequest{TargetTopicID: "t2"})
	assertAppError(t, err, appErrors.ErrConflict.Code)
}
