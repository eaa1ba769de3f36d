package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unifyp/fyp-api/internal/models"
	appErrors "github.com/unifyp/fyp-api/pkg/errors"
)

type mockFeedbackRepo struct {
	created  *models.Feedback
	feedback []models.FeedbackDetail
}

func (m *mockFeedbackRepo) Create(ctx context.Context, feedback *models.Feedback) error {
	if feedback.ID == "" {
		feedback.ID = "new-feedback"
	}
	m.created = feedback
	return nil
}

func (m *mockFeedbackRepo) ListBySubmission(ctx context.Context, submissionID string) ([]models.FeedbackDetail, error) {
	return m.feedback, nil
}

type mockSubmissionDetailReader struct {
	details map[string]*models.SubmissionDetail
}

func (m *mockSubmissionDetailReader) FindDetailByID(ctx context.Context, id string) (*models.SubmissionDetail, error) {
	if d, ok := m.details[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func submittedDetail() *models.SubmissionDetail {
	return &models.SubmissionDetail{
		Submission:   models.Submission{ID: "s1", AssignmentID: "as1", Status: models.SubmissionStatusSubmitted},
		StudentID:    "stu1",
		SupervisorID: "sup1",
	}
}

func newFeedbackService(repo *mockFeedbackRepo, submissions *mockSubmissionDetailReader) (*FeedbackService, *mockAuditWriter) {
	audit := &mockAuditWriter{}
	return NewFeedbackService(repo, submissions, audit, validator.New(), zap.NewNop()), audit
}

func TestFeedbackServiceCreate(t *testing.T) {
	repo := &mockFeedbackRepo{}
	submissions := &mockSubmissionDetailReader{details: map[string]*models.SubmissionDetail{"s1": submittedDetail()}}
	svc, audit := newFeedbackService(repo, submissions)

	grade := 72.5
	feedback, err := svc.Create(context.Background(), "s1", "sup1", CreateFeedbackRequest{Comment: "Solid proposal", Grade: &grade})
	require.NoError(t, err)
	assert.Equal(t, "s1", feedback.SubmissionID)
	assert.Equal(t, "sup1", feedback.SupervisorID)
	require.NotNil(t, feedback.Grade)
	assert.Equal(t, 72.5, *feedback.Grade)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionFeedbackCreate, audit.entries[0].Action)
}

func TestFeedbackServiceCreateWrongSupervisor(t *testing.T) {
	submissions := &mockSubmissionDetailReader{details: map[string]*models.SubmissionDetail{"s1": submittedDetail()}}
	svc, _ := newFeedbackService(&mockFeedbackRepo{}, submissions)

	_, err := svc.Create(context.Background(), "s1", "sup2", CreateFeedbackRequest{Comment: "nope"})
	assertAppError(t, err, appErrors.ErrForbidden.Code)
}

func TestFeedbackServiceCreateBeforeUpload(t *testing.T) {
	detail := submittedDetail()
	detail.Status = models.SubmissionStatusPending
	submissions := &mockSubmissionDetailReader{details: map[string]*models.SubmissionDetail{"s1": detail}}
	svc, _ := newFeedbackService(&mockFeedbackRepo{}, submissions)

	_, err := svc.Create(context.Background(), "s1", "sup1", CreateFeedbackRequest{Comment: "too early"})
	assertAppError(t, err, appErrors.ErrInvalidState.Code)
}

func TestFeedbackServiceCreateGradeOutOfRange(t *testing.T) {
	submissions := &mockSubmissionDetailReader{details: map[string]*models.SubmissionDetail{"s1": submittedDetail()}}
	svc, _ := newFeedbackService(&mockFeedbackRepo{}, submissions)

	grade := 120.0
	_, err := svc.Create(context.Background(), "s1", "sup1", CreateFeedbackRequest{Comment: "graded", Grade: &grade})
	assertAppError(t, err, appErrors.ErrValidation.Code)
}

func TestFeedbackServiceListParticipants(t *testing.T) {
	repo := &mockFeedbackRepo{feedback: []models.FeedbackDetail{{Feedback: models.Feedback{ID: "f1", SubmissionID: "s1"}}}}
	submissions := &mockSubmissionDetailReader{details: map[string]*models.SubmissionDetail{"s1": submittedDetail()}}
	svc, _ := newFeedbackService(repo, submissions)

	for _, actor := range []*models.JWTClaims{
		{UserID: "stu1", Role: models.RoleStudent},
		{UserID: "sup1", Role: models.RoleSupervisor},
		{UserID: "admin1", Role: models.RoleAdmin},
	} {
		list, err := svc.ListBySubmission(context.Background(), "s1", actor)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	}
}

func TestFeedbackServiceListOutsider(t *testing.T) {
	submissions := &mockSubmissionDetailReader{details: map[string]*models.SubmissionDetail{"s1": submittedDetail()}}
	svc, _ := newFeedbackService(&mockFeedbackRepo{}, submissions)

	_, err := svc.ListBySubmission(context.Background(), "s1", &models.JWTClaims{UserID: "stu2", Role: models.RoleStudent})
	assertAppError(t, err, appErrors.ErrForbidden.Code)
}
