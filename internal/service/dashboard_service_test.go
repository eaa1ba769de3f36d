package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unifyp/fyp-api/internal/models"
	appErrors "github.com/unifyp/fyp-api/pkg/errors"
)

type memoryCacheRepo struct {
	entries map[string][]byte
	deleted []string
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deleted = append(m.deleted, pattern)
	m.entries = nil
	return nil
}

type mockUserCounter struct{ byRole map[models.UserRole]int }

func (m *mockUserCounter) CountByRole(ctx context.Context, role models.UserRole) (int, error) {
	return m.byRole[role], nil
}

type mockStatusCounter struct {
	byStatus map[string]int
	calls    int
}

func (m *mockStatusCounter) CountByStatus(ctx context.Context) (map[string]int, error) {
	m.calls++
	return m.byStatus, nil
}

type mockActiveCounter struct{ active int }

func (m *mockActiveCounter) CountActive(ctx context.Context) (int, error) {
	return m.active, nil
}

type mockOverdueCounter struct{ overdue int }

func (m *mockOverdueCounter) CountOverdue(ctx context.Context, now time.Time) (int, error) {
	return m.overdue, nil
}

func newDashboardService(cacheRepo *memoryCacheRepo, topics *mockStatusCounter) *DashboardService {
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	return NewDashboardService(DashboardServiceParams{
		Users:        &mockUserCounter{byRole: map[models.UserRole]int{models.RoleStudent: 120, models.RoleSupervisor: 14}},
		Topics:       topics,
		Applications: &mockStatusCounter{byStatus: map[string]int{"PENDING": 30, "APPROVED": 80}},
		Assignments:  &mockActiveCounter{active: 80},
		Submissions:  &mockOverdueCounter{overdue: 7},
		Cache:        cacheSvc,
		Logger:       zap.NewNop(),
	})
}

func TestDashboardServiceSummary(t *testing.T) {
	topics := &mockStatusCounter{byStatus: map[string]int{"ACTIVE": 40, "DRAFT": 5}}
	svc := newDashboardService(&memoryCacheRepo{}, topics)

	summary, cacheHit, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, 120, summary.Students)
	assert.Equal(t, 14, summary.Supervisors)
	assert.Equal(t, 40, summary.TopicsByStatus["ACTIVE"])
	assert.Equal(t, 30, summary.ApplicationsByState["PENDING"])
	assert.Equal(t, 80, summary.ActiveAssignments)
	assert.Equal(t, 7, summary.OverdueSubmissions)
	assert.False(t, summary.GeneratedAt.IsZero())
}

func TestDashboardServiceSummaryCached(t *testing.T) {
	topics := &mockStatusCounter{byStatus: map[string]int{"ACTIVE": 40}}
	svc := newDashboardService(&memoryCacheRepo{}, topics)

	_, cacheHit, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, cacheHit)

	_, cacheHit, err = svc.Summary(context.Background())
	require.NoError(t, err)
	assert.True(t, cacheHit)
	assert.Equal(t, 1, topics.calls)
}

func TestDashboardServiceInvalidate(t *testing.T) {
	cacheRepo := &memoryCacheRepo{}
	topics := &mockStatusCounter{byStatus: map[string]int{"ACTIVE": 40}}
	svc := newDashboardService(cacheRepo, topics)

	_, _, err := svc.Summary(context.Background())
	require.NoError(t, err)

	svc.Invalidate(context.Background())
	assert.Contains(t, cacheRepo.deleted, "dashboard:summary")

	_, cacheHit, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, 2, topics.calls)
}

func TestDashboardServiceCacheDisabled(t *testing.T) {
	cacheSvc := NewCacheService(nil, nil, time.Minute, zap.NewNop(), false)
	topics := &mockStatusCounter{byStatus: map[string]int{"ACTIVE": 1}}
	svc := NewDashboardService(DashboardServiceParams{
		Users:        &mockUserCounter{byRole: map[models.UserRole]int{}},
		Topics:       topics,
		Applications: &mockStatusCounter{},
		Assignments:  &mockActiveCounter{},
		Submissions:  &mockOverdueCounter{},
		Cache:        cacheSvc,
		Logger:       zap.NewNop(),
	})

	_, cacheHit, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, cacheHit)

	_, cacheHit, err = svc.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, 2, topics.calls)
}
