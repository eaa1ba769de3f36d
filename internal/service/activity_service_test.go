package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unifyp/fyp-api/internal/models"
	appErrors "github.com/unifyp/fyp-api/pkg/errors"
)

type mockAuditLister struct {
	entries    []models.AuditLog
	lastFilter models.AuditFilter
}

func (m *mockAuditLister) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	m.lastFilter = filter
	return m.entries, len(m.entries), nil
}

func auditEntry(action string) models.AuditLog {
	userID := "u1"
	resourceID := "r1"
	return models.AuditLog{
		ID:         "log1",
		UserID:     &userID,
		Action:     action,
		Resource:   "applications",
		ResourceID: &resourceID,
		IPAddress:  "10.0.0.1",
		CreatedAt:  time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestActivityServiceList(t *testing.T) {
	repo := &mockAuditLister{entries: []models.AuditLog{auditEntry("APPLICATION_APPLY")}}
	svc := NewActivityService(repo, zap.NewNop())

	entries, pagination, err := svc.List(context.Background(), models.AuditFilter{Page: 2, PageSize: 25})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 2, pagination.Page)
	assert.Equal(t, 25, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestActivityServiceExportCSV(t *testing.T) {
	repo := &mockAuditLister{entries: []models.AuditLog{auditEntry("APPLICATION_APPROVE")}}
	svc := NewActivityService(repo, zap.NewNop())

	result, err := svc.Export(context.Background(), models.AuditFilter{}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasPrefix(result.FileName, "activity-"))
	assert.True(t, strings.HasSuffix(result.FileName, ".csv"))
	// Export widens the page to cover a useful window.
	assert.Equal(t, 500, repo.lastFilter.PageSize)

	body := string(result.Content)
	assert.Contains(t, body, "Time,User,Action,Resource,Resource ID,IP")
	assert.Contains(t, body, "APPLICATION_APPROVE")
	assert.Contains(t, body, "10.0.0.1")
}

func TestActivityServiceExportPDF(t *testing.T) {
	repo := &mockAuditLister{entries: []models.AuditLog{auditEntry("LOGIN")}}
	svc := NewActivityService(repo, zap.NewNop())

	result, err := svc.Export(context.Background(), models.AuditFilter{}, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasSuffix(result.FileName, ".pdf"))
	assert.NotEmpty(t, result.Content)
}

func TestActivityServiceExportBadFormat(t *testing.T) {
	svc := NewActivityService(&mockAuditLister{}, zap.NewNop())

	_, err := svc.Export(context.Background(), models.AuditFilter{}, "xlsx")
	assertAppError(t, err, appErrors.ErrInvalidArgument.Code)
}
