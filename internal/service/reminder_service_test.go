package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unifyp/fyp-api/internal/models"
	"github.com/unifyp/fyp-api/pkg/mailer"
)

type mockOverdueRepo struct {
	mu       sync.Mutex
	overdue  []models.SubmissionDetail
	reminded []string
}

func (m *mockOverdueRepo) ListOverdue(ctx context.Context, now time.Time, remindedBefore time.Time) ([]models.SubmissionDetail, error) {
	return m.overdue, nil
}

func (m *mockOverdueRepo) MarkReminded(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reminded = append(m.reminded, id)
	return nil
}

type channelMailer struct {
	sent chan mailer.Message
}

func (m *channelMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.sent <- msg
	return nil
}

func overdueSubmission(id, studentID, topic string, phase models.SubmissionPhase) models.SubmissionDetail {
	return models.SubmissionDetail{
		Submission: models.Submission{
			ID:           id,
			AssignmentID: "as1",
			Phase:        phase,
			Status:       models.SubmissionStatusPending,
			DueAt:        time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
		},
		StudentID:    studentID,
		StudentName:  "Test Student",
		StudentEmail: studentID + "@uni.example",
		TopicTitle:   topic,
	}
}

func TestReminderServicePollGroupsByStudent(t *testing.T) {
	repo := &mockOverdueRepo{overdue: []models.SubmissionDetail{
		overdueSubmission("s1", "stu1", "Tracing pipeline", models.PhaseProposal),
		overdueSubmission("s2", "stu1", "Tracing pipeline", models.PhaseProgress),
		overdueSubmission("s3", "stu2", "Cache design", models.PhaseFinal),
	}}
	mail := &channelMailer{sent: make(chan mailer.Message, 4)}
	svc := NewReminderService(repo, mail, zap.NewNop(), ReminderServiceConfig{Workers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.queue.Start(ctx)

	require.NoError(t, svc.Poll(ctx))

	var messages []mailer.Message
	for i := 0; i < 2; i++ {
		select {
		case msg := <-mail.sent:
			messages = append(messages, msg)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for reminder delivery")
		}
	}
	svc.queue.Stop()

	// One email per student, both overdue slots in stu1's message.
	require.Len(t, messages, 2)
	assert.ElementsMatch(t, []string{"s1", "s2", "s3"}, repo.reminded)
	for _, msg := range messages {
		assert.Equal(t, "Overdue project submissions", msg.Subject)
		if msg.ToEmail == "stu1@uni.example" {
			assert.Contains(t, msg.TextBody, "PROPOSAL")
			assert.Contains(t, msg.TextBody, "PROGRESS")
		}
	}
}

func TestReminderServicePollNoOverdue(t *testing.T) {
	repo := &mockOverdueRepo{}
	mail := &channelMailer{sent: make(chan mailer.Message, 1)}
	svc := NewReminderService(repo, mail, zap.NewNop(), ReminderServiceConfig{Workers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.queue.Start(ctx)
	defer svc.queue.Stop()

	require.NoError(t, svc.Poll(ctx))
	assert.Empty(t, repo.reminded)

	select {
	case <-mail.sent:
		t.Fatal("no reminder should be sent when nothing is overdue")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRenderReminderBody(t *testing.T) {
	payload := &reminderPayload{
		StudentName: "Test Student",
		Submissions: []models.SubmissionDetail{
			overdueSubmission("s1", "stu1", "Tracing pipeline", models.PhaseProposal),
		},
	}

	body := renderReminderBody(payload)
	assert.True(t, strings.HasPrefix(body, "Dear Test Student,"))
	assert.Contains(t, body, "Tracing pipeline (PROPOSAL), due 15 Mar 2026")
}
