package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/unifyp/fyp-api/internal/models"
	"github.com/unifyp/fyp-api/pkg/database"
	appErrors "github.com/unifyp/fyp-api/pkg/errors"
)

type submissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	FindDetailByID(ctx context.Context, id string) (*models.SubmissionDetail, error)
	ListByAssignment(ctx context.Context, assignmentID string) ([]models.Submission, error)
	MarkSubmitted(ctx context.Context, id string, fileName, filePath string, fileSize int64, mimeType string, submittedAt time.Time, status models.SubmissionStatus) error
}

type assignmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
}

type documentStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
}

type downloadSigner interface {
	Generate(submissionID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (submissionID, relPath string, expiresAt time.Time, err error)
}

// ScheduleSubmissionRequest opens a deliverable slot on an assignment.
type ScheduleSubmissionRequest struct {
	Phase models.SubmissionPhase `json:"phase" validate:"required,oneof=PROPOSAL PROGRESS FINAL"`
	DueAt time.Time              `json:"due_at" validate:"required"`
}

// UploadDocument carries the uploaded file stream and its metadata.
type UploadDocument struct {
	FileName string
	Size     int64
	MIMEType string
	Reader   io.Reader
}

// DownloadGrant is a short-lived signed download reference.
type DownloadGrant struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SubmissionServiceConfig tunes upload limits.
type SubmissionServiceConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// SubmissionService manages phased document deliverables: scheduling slots,
// accepting uploads, and issuing signed download tokens.
type SubmissionService struct {
	repo        submissionRepository
	assignments assignmentReader
	store       documentStore
	signer      downloadSigner
	audit       auditWriter
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         SubmissionServiceConfig
}

// NewSubmissionService constructs SubmissionService.
func NewSubmissionService(repo submissionRepository, assignments assignmentReader, store documentStore, signer downloadSigner, audit auditWriter, validate *validator.Validate, logger *zap.Logger, cfg SubmissionServiceConfig) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{repo: repo, assignments: assignments, store: store, signer: signer, audit: audit, validator: validate, logger: logger, cfg: cfg}
}

// Schedule opens a submission slot for one phase of an assignment. Only the
// supervising user of an active assignment may schedule deliverables.
func (s *SubmissionService) Schedule(ctx context.Context, assignmentID, supervisorID string, req ScheduleSubmissionRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission schedule payload")
	}

	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.SupervisorID != supervisorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another supervisor")
	}
	if assignment.Status != models.AssignmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "assignment is not active")
	}

	submission := &models.Submission{
		AssignmentID: assignmentID,
		Phase:        req.Phase,
		DueAt:        req.DueAt.UTC(),
		Status:       models.SubmissionStatusPending,
	}
	if err := s.repo.Create(ctx, submission); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "submission slot already exists for this phase")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission slot")
	}
	return submission, nil
}

// ListByAssignment returns all deliverable slots for an assignment, visible
// to the assigned student, the supervising user, and admins.
func (s *SubmissionService) ListByAssignment(ctx context.Context, assignmentID string, actor *models.JWTClaims) ([]models.Submission, error) {
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(assignment, actor); err != nil {
		return nil, err
	}

	submissions, err := s.repo.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, nil
}

// Upload accepts a student's document for a pending slot. Uploads past the
// due date are accepted and recorded as LATE.
func (s *SubmissionService) Upload(ctx context.Context, submissionID, studentID string, doc UploadDocument) (*models.Submission, error) {
	if doc.FileName == "" || doc.Reader == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "document file is required")
	}
	// Browsers send the client-side file name verbatim; strip any path so
	// it cannot steer the write outside the storage layout.
	fileName := filepath.Base(doc.FileName)
	if fileName == "." || fileName == ".." || fileName == string(filepath.Separator) {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "document file name is invalid")
	}
	if s.cfg.MaxFileSizeBytes > 0 && doc.Size > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "document exceeds maximum file size")
	}
	if len(s.cfg.AllowedMIMEs) > 0 && !s.mimeAllowed(doc.MIMEType) {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "document type is not allowed")
	}

	submission, err := s.repo.FindByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	assignment, err := s.loadAssignment(ctx, submission.AssignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "submission belongs to another student")
	}
	if submission.Status != models.SubmissionStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "submission has already been uploaded")
	}

	relPath := filepath.Join(assignment.ID, string(submission.Phase), fileName)
	storedPath, err := s.store.SaveStream(relPath, doc.Reader)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}

	now := time.Now().UTC()
	status := models.SubmissionStatusSubmitted
	if now.After(submission.DueAt) {
		status = models.SubmissionStatusLate
	}
	if err := s.repo.MarkSubmitted(ctx, submissionID, fileName, storedPath, doc.Size, doc.MIMEType, now, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record upload")
	}

	submission.FileName = fileName
	submission.FilePath = storedPath
	submission.FileSize = doc.Size
	submission.MIMEType = doc.MIMEType
	submission.SubmittedAt = &now
	submission.Status = status

	s.recordAudit(ctx, studentID, models.AuditActionSubmissionUpload, submissionID, map[string]interface{}{
		"assignment_id": submission.AssignmentID,
		"phase":         string(submission.Phase),
		"status":        string(status),
	})
	return submission, nil
}

// GrantDownload issues a signed short-lived token for the submitted
// document.
func (s *SubmissionService) GrantDownload(ctx context.Context, submissionID string, actor *models.JWTClaims) (*DownloadGrant, error) {
	submission, err := s.repo.FindByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if submission.FilePath == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "no document has been uploaded")
	}

	assignment, err := s.loadAssignment(ctx, submission.AssignmentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(assignment, actor); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(submission.ID, submission.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}
	return &DownloadGrant{Token: token, ExpiresAt: expiresAt}, nil
}

// ResolveDownload validates a signed token and opens the underlying file.
// The caller must close the returned handle.
func (s *SubmissionService) ResolveDownload(ctx context.Context, token string) (*models.Submission, *os.File, error) {
	submissionID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}

	submission, err := s.repo.FindByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if submission.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "download token does not match submission")
	}

	file, err := s.store.Open(submission.FilePath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document")
	}
	return submission, file, nil
}

func (s *SubmissionService) loadAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return assignment, nil
}

// authorize allows the assigned student, the supervising user, and admins.
func (s *SubmissionService) authorize(assignment *models.Assignment, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	switch {
	case actor.Role == models.RoleAdmin:
		return nil
	case actor.UserID == assignment.StudentID:
		return nil
	case actor.UserID == assignment.SupervisorID:
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "not a participant of this assignment")
}

func (s *SubmissionService) mimeAllowed(mimeType string) bool {
	for _, allowed := range s.cfg.AllowedMIMEs {
		if allowed == mimeType {
			return true
		}
	}
	return false
}

func (s *SubmissionService) recordAudit(ctx context.Context, actorID, action, resourceID string, details map[string]interface{}) {
	payload, _ := json.Marshal(details)
	if err := s.audit.Create(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "submissions",
		ResourceID: &resourceID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
