package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/unifyp/fyp-api/internal/models"
	"github.com/unifyp/fyp-api/pkg/jobs"
	"github.com/unifyp/fyp-api/pkg/mailer"
)

type overdueSubmissionRepository interface {
	ListOverdue(ctx context.Context, now time.Time, remindedBefore time.Time) ([]models.SubmissionDetail, error)
	MarkReminded(ctx context.Context, id string, at time.Time) error
}

// reminderPayload is the job body for one student's overdue notice.
type reminderPayload struct {
	StudentName  string
	StudentEmail string
	Submissions  []models.SubmissionDetail
}

// ReminderServiceConfig tunes poll cadence and delivery retries.
type ReminderServiceConfig struct {
	PollInterval time.Duration
	ResendAfter  time.Duration
	Workers      int
	MaxRetries   int
}

// ReminderService polls for overdue pending submissions and emails the
// affected students, one message per student per poll. The
// last_reminded_at stamp keeps repeated polls from re-sending until the
// resend window elapses.
type ReminderService struct {
	repo   overdueSubmissionRepository
	mail   mailer.Mailer
	queue  *jobs.Queue
	logger *zap.Logger
	now    func() time.Time
	cfg    ReminderServiceConfig
}

// NewReminderService constructs ReminderService and its delivery queue.
func NewReminderService(repo overdueSubmissionRepository, mail mailer.Mailer, logger *zap.Logger, cfg ReminderServiceConfig) *ReminderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Hour
	}
	if cfg.ResendAfter <= 0 {
		cfg.ResendAfter = 24 * time.Hour
	}

	s := &ReminderService{
		repo:   repo,
		mail:   mail,
		logger: logger,
		now:    time.Now,
		cfg:    cfg,
	}
	s.queue = jobs.NewQueue("submission-reminders", s.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Run polls on an interval until the context is cancelled. One poll runs
// immediately on startup.
func (s *ReminderService) Run(ctx context.Context) error {
	s.queue.Start(ctx)
	defer s.queue.Stop()

	if err := s.Poll(ctx); err != nil {
		s.logger.Warn("reminder poll failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Poll(ctx); err != nil {
				s.logger.Warn("reminder poll failed", zap.Error(err))
			}
		}
	}
}

// Poll finds overdue pending submissions whose last reminder is older than
// the resend window, groups them per student, and enqueues one email each.
// Submissions are stamped before enqueueing so a crashed delivery is
// retried on the next window rather than duplicated within this one.
func (s *ReminderService) Poll(ctx context.Context) error {
	now := s.now().UTC()
	overdue, err := s.repo.ListOverdue(ctx, now, now.Add(-s.cfg.ResendAfter))
	if err != nil {
		return fmt.Errorf("list overdue submissions: %w", err)
	}
	if len(overdue) == 0 {
		return nil
	}

	byStudent := make(map[string]*reminderPayload)
	order := make([]string, 0)
	for _, submission := range overdue {
		payload, ok := byStudent[submission.StudentID]
		if !ok {
			payload = &reminderPayload{
				StudentName:  submission.StudentName,
				StudentEmail: submission.StudentEmail,
			}
			byStudent[submission.StudentID] = payload
			order = append(order, submission.StudentID)
		}
		payload.Submissions = append(payload.Submissions, submission)
	}

	enqueued := 0
	for _, studentID := range order {
		payload := byStudent[studentID]
		for _, submission := range payload.Submissions {
			if err := s.repo.MarkReminded(ctx, submission.ID, now); err != nil {
				s.logger.Warn("failed to stamp reminder",
					zap.String("submission_id", submission.ID), zap.Error(err))
			}
		}
		if err := s.queue.Enqueue(jobs.Job{
			ID:      fmt.Sprintf("reminder-%s-%d", studentID, now.Unix()),
			Type:    "submission-reminder",
			Payload: payload,
		}); err != nil {
			s.logger.Warn("failed to enqueue reminder",
				zap.String("student_id", studentID), zap.Error(err))
			continue
		}
		enqueued++
	}

	s.logger.Info("reminder poll complete",
		zap.Int("overdue", len(overdue)),
		zap.Int("students_notified", enqueued),
	)
	return nil
}

func (s *ReminderService) deliver(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(*reminderPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type for job %s", job.ID)
	}
	if payload.StudentEmail == "" {
		s.logger.Warn("skipping reminder for student without email", zap.String("job", job.ID))
		return nil
	}
	return s.mail.Send(ctx, mailer.Message{
		ToName:   payload.StudentName,
		ToEmail:  payload.StudentEmail,
		Subject:  "Overdue project submissions",
		TextBody: renderReminderBody(payload),
	})
}

func renderReminderBody(payload *reminderPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\nThe following project deliverables are past their due date:\n\n", payload.StudentName)
	for _, submission := range payload.Submissions {
		fmt.Fprintf(&b, "  - %s (%s), due %s\n",
			submission.TopicTitle,
			submission.Phase,
			submission.DueAt.Format("2 Jan 2006"),
		)
	}
	b.WriteString("\nPlease upload your documents as soon as possible.\n")
	return b.String()
}
