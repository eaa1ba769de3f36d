package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/unifyp/fyp-api/internal/models"
	appErrors "github.com/unifyp/fyp-api/pkg/errors"
	"github.com/unifyp/fyp-api/pkg/export"
)

type auditLister interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
}

// ExportResult holds a rendered export file.
type ExportResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ActivityService exposes the read side of the audit trail: filtered
// listing and CSV/PDF export for admins.
type ActivityService struct {
	repo   auditLister
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewActivityService constructs ActivityService.
func NewActivityService(repo auditLister, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{
		repo:   repo,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

// List returns audit entries with pagination metadata.
func (s *ActivityService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activity")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return entries, pagination, nil
}

// Export renders the filtered audit trail as csv or pdf. The filter's page
// size is raised to the repository maximum so exports cover a useful window.
func (s *ActivityService) Export(ctx context.Context, filter models.AuditFilter, format string) (*ExportResult, error) {
	if format != "csv" && format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrInvalidArgument, "format must be csv or pdf")
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 500
	}

	entries, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity for export")
	}

	dataset := buildActivityDataset(entries)
	stamp := time.Now().UTC().Format("20060102-150405")

	switch format {
	case "csv":
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("activity-%s.csv", stamp),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	default:
		content, err := s.pdf.Render(dataset, "Activity Log")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("activity-%s.pdf", stamp),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	}
}

func buildActivityDataset(entries []models.AuditLog) export.Dataset {
	headers := []string{"Time", "User", "Action", "Resource", "Resource ID", "IP"}
	rows := make([]map[string]string, 0, len(entries))
	for _, entry := range entries {
		userID := ""
		if entry.UserID != nil {
			userID = *entry.UserID
		}
		resourceID := ""
		if entry.ResourceID != nil {
			resourceID = *entry.ResourceID
		}
		rows = append(rows, map[string]string{
			"Time":        entry.CreatedAt.Format(time.RFC3339),
			"User":        userID,
			"Action":      entry.Action,
			"Resource":    entry.Resource,
			"Resource ID": resourceID,
			"IP":          entry.IPAddress,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
