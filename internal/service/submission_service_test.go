package service

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unifyp/fyp-api/internal/models"
	appErrors "github.com/unifyp/fyp-api/pkg/errors"
)

type mockSubmissionRepo struct {
	submissions map[string]models.Submission
	created     *models.Submission
	marked      map[string]models.SubmissionStatus
}

func (m *mockSubmissionRepo) Create(ctx context.Context, submission *models.Submission) error {
	if m.submissions == nil {
		m.submissions = make(map[string]models.Submission)
	}
	if submission.ID == "" {
		submission.ID = "new-sub"
	}
	m.submissions[submission.ID] = *submission
	m.created = submission
	return nil
}

func (m *mockSubmissionRepo) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	if sub, ok := m.submissions[id]; ok {
		return &sub, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubmissionRepo) FindDetailByID(ctx context.Context, id string) (*models.SubmissionDetail, error) {
	if sub, ok := m.submissions[id]; ok {
		return &models.SubmissionDetail{Submission: sub}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubmissionRepo) ListByAssignment(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	var list []models.Submission
	for _, sub := range m.submissions {
		if sub.AssignmentID == assignmentID {
			list = append(list, sub)
		}
	}
	return list, nil
}

func (m *mockSubmissionRepo) MarkSubmitted(ctx context.Context, id string, fileName, filePath string, fileSize int64, mimeType string, submittedAt time.Time, status models.SubmissionStatus) error {
	if m.marked == nil {
		m.marked = make(map[string]models.SubmissionStatus)
	}
	m.marked[id] = status
	if sub, ok := m.submissions[id]; ok {
		sub.FileName = fileName
		sub.FilePath = filePath
		sub.FileSize = fileSize
		sub.MIMEType = mimeType
		sub.SubmittedAt = &submittedAt
		sub.Status = status
		m.submissions[id] = sub
	}
	return nil
}

type mockAssignmentReader struct {
	assignments map[string]*models.Assignment
}

func (m *mockAssignmentReader) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	if a, ok := m.assignments[id]; ok {
		return a, nil
	}
	return nil, sql.ErrNoRows
}

type mockDocumentStore struct {
	dir   string
	saved []string
}

func (m *mockDocumentStore) SaveStream(filename string, r io.Reader) (string, error) {
	m.saved = append(m.saved, filename)
	full := filepath.Join(m.dir, filepath.Base(filename))
	f, err := os.Create(full)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return filename, nil
}

func (m *mockDocumentStore) Open(filename string) (*os.File, error) {
	return os.Open(filepath.Join(m.dir, filepath.Base(filename)))
}

type mockSigner struct {
	token     string
	parsedID  string
	parsedRel string
	parseErr  error
}

func (m *mockSigner) Generate(submissionID, relPath string) (string, time.Time, error) {
	return m.token, time.Now().Add(30 * time.Minute), nil
}

func (m *mockSigner) Parse(token string, allowExpired bool) (string, string, time.Time, error) {
	if m.parseErr != nil {
		return "", "", time.Time{}, m.parseErr
	}
	return m.parsedID, m.parsedRel, time.Now().Add(time.Minute), nil
}

func activeAssignment() *models.Assignment {
	return &models.Assignment{ID: "as1", StudentID: "stu1", TopicID: "t1", SupervisorID: "sup1", Status: models.AssignmentStatusActive}
}

func newSubmissionService(t *testing.T, repo *mockSubmissionRepo, assignments *mockAssignmentReader) (*SubmissionService, *mockDocumentStore, *mockSigner) {
	t.Helper()
	store := &mockDocumentStore{dir: t.TempDir()}
	signer := &mockSigner{token: "signed-token"}
	svc := NewSubmissionService(repo, assignments, store, signer, &mockAuditWriter{}, validator.New(), zap.NewNop(), SubmissionServiceConfig{
		MaxFileSizeBytes: 1024,
		AllowedMIMEs:     []string{"application/pdf"},
	})
	return svc, store, signer
}

func TestSubmissionServiceSchedule(t *testing.T) {
	repo := &mockSubmissionRepo{}
	assignments := &mockAssignmentReader{assignments: map[string]*models.Assignment{"as1": activeAssignment()}}
	svc, _, _ := newSubmissionService(t, repo, assignments)

	due := time.Now().Add(7 * 24 * time.Hour)
	sub, err := svc.Schedule(context.Background(), "as1", "sup1", ScheduleSubmissionRequest{Phase: models.PhaseProposal, DueAt: due})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusPending, sub.Status)
	assert.Equal(t, models.PhaseProposal, sub.Phase)
	assert.Equal(t, "as1", repo.created.AssignmentID)
}

func TestSubmissionServiceScheduleWrongSupervisor(t *testing.T) {
	assignments := &mockAssignmentReader{assignments: map[string]*models.Assignment{"as1": activeAssignment()}}
	svc, _, _ := newSubmissionService(t, &mockSubmissionRepo{}, assignments)

	_, err := svc.Schedule(context.Background(), "as1", "sup2", ScheduleSubmissionRequest{Phase: models.PhaseFinal, DueAt: time.Now()})
	assertAppError(t, err, appErrors.ErrForbidden.Code)
}

func TestSubmissionServiceUpload(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]models.Submission{
		"s1": {ID: "s1", AssignmentID: "as1", Phase: models.PhaseProposal, Status: models.SubmissionStatusPending, DueAt: time.Now().Add(time.Hour)},
	}}
	assignments := &mockAssignmentReader{assignments: map[string]*models.Assignment{"as1": activeAssignment()}}
	svc, store, _ := newSubmissionService(t, repo, assignments)

	sub, err := svc.Upload(context.Background(), "s1", "stu1", UploadDocument{
		FileName: "proposal.pdf",
		Size:     128,
		MIMEType: "application/pdf",
		Reader:   strings.NewReader("pdf bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusSubmitted, sub.Status)
	assert.Equal(t, "proposal.pdf", sub.FileName)
	require.Len(t, store.saved, 1)
	assert.Equal(t, filepath.Join("as1", "PROPOSAL", "proposal.pdf"), store.saved[0])
}

func TestSubmissionServiceUploadStripsFileNamePath(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]models.Submission{
		"s1": {ID: "s1", AssignmentID: "as1", Phase: models.PhaseProposal, Status: models.SubmissionStatusPending, DueAt: time.Now().Add(time.Hour)},
	}}
	assignments := &mockAssignmentReader{assignments: map[string]*models.Assignment{"as1": activeAssignment()}}
	svc, store, _ := newSubmissionService(t, repo, assignments)

	sub, err := svc.Upload(context.Background(), "s1", "stu1", UploadDocument{
		FileName: "../../../../owned.pdf",
		Size:     128,
		MIMEType: "application/pdf",
		Reader:   strings.NewReader("pdf bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, "owned.pdf", sub.FileName)
	require.Len(t, store.saved, 1)
	assert.Equal(t, filepath.Join("as1", "PROPOSAL", "owned.pdf"), store.saved[0])
}

func TestSubmissionServiceUploadRejectsBareDotDot(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]models.Submission{
		"s1": {ID: "s1", AssignmentID: "as1", Phase: models.PhaseProposal, Status: models.SubmissionStatusPending, DueAt: time.Now().Add(time.Hour)},
	}}
	assignments := &mockAssignmentReader{assignments: map[string]*models.Assignment{"as1": activeAssignment()}}
	svc, store, _ := newSubmissionService(t, repo, assignments)

	_, err := svc.Upload(context.Background(), "s1", "stu1", UploadDocument{
		FileName: "..",
		Size:     128,
		MIMEType: "application/pdf",
		Reader:   strings.NewReader("pdf bytes"),
	})
	assertAppError(t, err, appErrors.ErrInvalidArgument.Code)
	assert.Empty(t, store.saved)
}

func TestSubmissionServiceUploadLate(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]models.Submission{
		"s1": {ID: "s1", AssignmentID: "as1", Phase: models.PhaseFinal, Status: models.SubmissionStatusPending, DueAt: time.Now().Add(-time.Hour)},
	}}
	assignments := &mockAssignmentReader{assignments: map[string]*models.Assignment{"as1": activeAssignment()}}
	svc, _, _ := newSubmissionService(t, repo, assignments)

	sub, err := svc.Upload(context.Background(), "s1", "stu1", UploadDocument{
		FileName: "final.pdf",
		Size:     64,
		MIMEType: "application/pdf",
		Reader:   strings.NewReader("late bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusLate, sub.Status)
	assert.Equal(t, models.SubmissionStatusLate, repo.marked["s1"])
}

func TestSubmissionServiceUploadTooLarge(t *testing.T) {
	svc, _, _ := newSubmissionService(t, &mockSubmissionRepo{}, &mockAssignmentReader{})

	_, err := svc.Upload(context.Background(), "s1", "stu1", UploadDocument{
		FileName: "big.pdf",
		Size:     4096,
		MIMEType: "application/pdf",
		Reader:   strings.NewReader("x"),
	})
	assertAppError(t, err, appErrors.ErrInvalidArgument.Code)
}

func TestSubmissionServiceUploadDisallowedMIME(t *testing.T) {
	svc, _, _ := newSubmissionService(t, &mockSubmissionRepo{}, &mockAssignmentReader{})

	_, err := svc.Upload(context.Background(), "s1", "stu1", UploadDocument{
		FileName: "tool.exe",
		Size:     10,
		MIMEType: "application/octet-stream",
		Reader:   strings.NewReader("x"),
	})
	assertAppError(t, err, appErrors.ErrInvalidArgument.Code)
}

func TestSubmissionServiceUploadWrongStudent(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]models.Submission{
		"s1": {ID: "s1", AssignmentID: "as1", Status: models.SubmissionStatusPending, DueAt: time.Now().Add(time.Hour)},
	}}
	assignments := &mockAssignmentReader{assignments: map[string]*models.Assignment{"as1": activeAssignment()}}
	svc, _, _ := newSubmissionService(t, repo, assignments)

	_, err := svc.Upload(context.Background(), "s1", "stu2", UploadDocument{
		FileName: "proposal.pdf",
		Size:     10,
		MIMEType: "application/pdf",
		Reader:   strings.NewReader("x"),
	})
	assertAppError(t, err, appErrors.ErrForbidden.Code)
}

func TestSubmissionServiceUploadAlreadySubmitted(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]models.Submission{
		"s1": {ID: "s1", AssignmentID: "as1", Status: models.SubmissionStatusSubmitted, DueAt: time.Now().Add(time.Hour)},
	}}
	assignments := &mockAssignmentReader{assignments: map[string]*models.Assignment{"as1": activeAssignment()}}
	svc, _, _ := newSubmissionService(t, repo, assignments)

	_, err := svc.Upload(context.Background(), "s1", "stu1", UploadDocument{
		FileName: "proposal.pdf",
		Size:     10,
		MIMEType: "application/pdf",
		Reader:   strings.NewReader("x"),
	})
	assertAppError(t, err, appErrors.ErrInvalidState.Code)
}

func TestSubmissionServiceGrantDownload(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]models.Submission{
		"s1": {ID: "s1", AssignmentID: "as1", FilePath: "as1/PROPOSAL/proposal.pdf", Status: models.SubmissionStatusSubmitted},
	}}
	assignments := &mockAssignmentReader{assignments: map[string]*models.Assignment{"as1": activeAssignment()}}
	svc, _, _ := newSubmissionService(t, repo, assignments)

	actor := &models.JWTClaims{UserID: "sup1", Role: models.RoleSupervisor}
	grant, err := svc.GrantDownload(context.Background(), "s1", actor)
	require.NoError(t, err)
	assert.Equal(t, "signed-token", grant.Token)
	assert.False(t, grant.ExpiresAt.IsZero())
}

func TestSubmissionServiceGrantDownloadNotParticipant(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]models.Submission{
		"s1": {ID: "s1", AssignmentID: "as1", FilePath: "as1/PROPOSAL/proposal.pdf"},
	}}
	assignments := &mockAssignmentReader{assignments: map[string]*models.Assignment{"as1": activeAssignment()}}
	svc, _, _ := newSubmissionService(t, repo, assignments)

	actor := &models.JWTClaims{UserID: "stu9", Role: models.RoleStudent}
	_, err := svc.GrantDownload(context.Background(), "s1", actor)
	assertAppError(t, err, appErrors.ErrForbidden.Code)
}

func TestSubmissionServiceGrantDownloadNoDocument(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]models.Submission{
		"s1": {ID: "s1", AssignmentID: "as1", Status: models.SubmissionStatusPending},
	}}
	assignments := &mockAssignmentReader{assignments: map[string]*models.Assignment{"as1": activeAssignment()}}
	svc, _, _ := newSubmissionService(t, repo, assignments)

	actor := &models.JWTClaims{UserID: "stu1", Role: models.RoleStudent}
	_, err := svc.GrantDownload(context.Background(), "s1", actor)
	assertAppError(t, err, appErrors.ErrInvalidState.Code)
}

func TestSubmissionServiceResolveDownload(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]models.Submission{
		"s1": {ID: "s1", AssignmentID: "as1", FileName: "proposal.pdf", FilePath: "as1/PROPOSAL/proposal.pdf", Status: models.SubmissionStatusSubmitted},
	}}
	assignments := &mockAssignmentReader{assignments: map[string]*models.Assignment{"as1": activeAssignment()}}
	svc, store, signer := newSubmissionService(t, repo, assignments)
	signer.parsedID = "s1"
	signer.parsedRel = "as1/PROPOSAL/proposal.pdf"

	_, err := store.SaveStream("as1/PROPOSAL/proposal.pdf", strings.NewReader("pdf bytes"))
	require.NoError(t, err)

	sub, file, err := svc.ResolveDownload(context.Background(), "signed-token")
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, "s1", sub.ID)

	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(content))
}

func TestSubmissionServiceResolveDownloadPathMismatch(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]models.Submission{
		"s1": {ID: "s1", AssignmentID: "as1", FilePath: "as1/PROPOSAL/proposal.pdf"},
	}}
	assignments := &mockAssignmentReader{assignments: map[string]*models.Assignment{"as1": activeAssignment()}}
	svc, _, signer := newSubmissionService(t, repo, assignments)
	signer.parsedID = "s1"
	signer.parsedRel = "as1/PROPOSAL/other.pdf"

	_, _, err := svc.ResolveDownload(context.Background(), "signed-token")
	assertAppError(t, err, appErrors.ErrUnauthorized.Code)
}
