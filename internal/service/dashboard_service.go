package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/unifyp/fyp-api/internal/models"
	appErrors "github.com/unifyp/fyp-api/pkg/errors"
)

const dashboardSummaryCacheKey = "dashboard:summary"

type userCounter interface {
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
}

type topicCounter interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type applicationCounter interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type activeAssignmentCounter interface {
	CountActive(ctx context.Context) (int, error)
}

type overdueSubmissionCounter interface {
	CountOverdue(ctx context.Context, now time.Time) (int, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Users        userCounter
	Topics       topicCounter
	Applications applicationCounter
	Assignments  activeAssignmentCounter
	Submissions  overdueSubmissionCounter
	Cache        *CacheService
	Logger       *zap.Logger
	Config       DashboardServiceConfig
}

// DashboardService composes platform-wide counters for the admin view.
type DashboardService struct {
	users        userCounter
	topics       topicCounter
	applications applicationCounter
	assignments  activeAssignmentCounter
	submissions  overdueSubmissionCounter
	cache        *CacheService
	logger       *zap.Logger
	now          func() time.Time
	cfg          DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		users:        params.Users,
		topics:       params.Topics,
		applications: params.Applications,
		assignments:  params.Assignments,
		submissions:  params.Submissions,
		cache:        params.Cache,
		logger:       logger,
		now:          time.Now,
		cfg:          cfg,
	}
}

// Summary returns the admin dashboard counters and indicates whether the
// cached copy was served.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, bool, error) {
	var cached models.DashboardSummary
	if hit, err := s.cache.Get(ctx, dashboardSummaryCacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	summary, err := s.build(ctx)
	if err != nil {
		return nil, false, err
	}

	if err := s.cache.Set(ctx, dashboardSummaryCacheKey, summary, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("failed to cache dashboard summary", zap.Error(err))
	}
	return summary, false, nil
}

// Invalidate drops the cached summary. Called after workflow writes that
// change the counters.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, dashboardSummaryCacheKey); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

func (s *DashboardService) build(ctx context.Context) (*models.DashboardSummary, error) {
	students, err := s.users.CountByRole(ctx, models.RoleStudent)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	supervisors, err := s.users.CountByRole(ctx, models.RoleSupervisor)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count supervisors")
	}
	topicsByStatus, err := s.topics.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count topics")
	}
	applicationsByStatus, err := s.applications.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count applications")
	}
	activeAssignments, err := s.assignments.CountActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active assignments")
	}
	overdue, err := s.submissions.CountOverdue(ctx, s.now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count overdue submissions")
	}

	return &models.DashboardSummary{
		Students:            students,
		Supervisors:         supervisors,
		TopicsByStatus:      topicsByStatus,
		ApplicationsByState: applicationsByStatus,
		ActiveAssignments:   activeAssignments,
		OverdueSubmissions:  overdue,
		GeneratedAt:         s.now().UTC(),
	}, nil
}
