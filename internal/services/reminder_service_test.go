package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/collegedesk/collegedesk/internal/models"
)

func newReminderForTest(t *testing.T, env *testEnv, at time.Time) *ReminderService {
	t.Helper()

	svc, err := NewReminderService(env.db, env.users, env.courier, 2)
	require.NoError(t, err)
	return svc.WithClock(func() time.Time { return at })
}

// seedQuery inserts a query with pending response rows, bypassing the
// creation-time fan-out so only scheduler emails are counted.
func seedQuery(t *testing.T, env *testEnv, kind string, due time.Time, targets ...string) *models.Query {
	t.Helper()

	query := models.Query{
		Kind:    kind,
		Subject: "Quarterly data return",
		DueDate: due.UTC(),
		Link:    "https://portal.example.gov/q",
		Targets: encodeNames(targets),
	}
	require.NoError(t, env.db.Create(&query).Error)
	for _, college := range targets {
		require.NoError(t, env.db.Create(&models.QueryResponse{
			QueryID: query.ID,
			College: college,
			Status:  models.ResponseStatusPending,
		}).Error)
	}
	return &query
}

func TestReminderPhaseSelection(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	svc := newReminderForTest(t, env, now)

	cases := []struct {
		name  string
		due   time.Time
		phase string
	}{
		{"far in the future", now.Add(10 * 24 * time.Hour), ""},
		{"inside reminder window", now.Add(36 * time.Hour), models.ReminderPhaseBeforeDue},
		{"at threshold edge", now.Add(2 * 24 * time.Hour), models.ReminderPhaseBeforeDue},
		{"past due", now.Add(-time.Hour), models.ReminderPhaseOverdue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			phase, _ := svc.phaseFor(tc.due)
			require.Equal(t, tc.phase, phase)
		})
	}
}

func TestReminderRunSendsOncePerQueryCollegePhase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCollege(t, "college-a")
	env.seedCollege(t, "college-b")

	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	seedQuery(t, env, models.QueryKindFile, now.Add(24*time.Hour), "college-a", "college-b")

	svc := newReminderForTest(t, env, now)
	require.NoError(t, svc.Run(ctx))
	require.Equal(t, 2, env.mailer.count())

	// An immediate second run sends zero additional emails.
	require.NoError(t, svc.Run(ctx))
	require.Equal(t, 2, env.mailer.count())
}

func TestReminderSkipsRespondedColleges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCollege(t, "college-a")
	env.seedCollege(t, "college-b")

	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	query := seedQuery(t, env, models.QueryKindFile, now.Add(24*time.Hour), "college-a", "college-b")

	respondedAt := now
	require.NoError(t, env.db.Model(&models.QueryResponse{}).
		Where("query_id = ? AND college = ?", query.ID, "college-a").
		Updates(map[string]any{
			"status":       models.ResponseStatusResponded,
			"responded_at": respondedAt,
		}).Error)

	svc := newReminderForTest(t, env, now)
	require.NoError(t, svc.Run(ctx))

	require.Equal(t, []string{"college-b@example.edu"}, env.mailer.sentTo())
}

func TestReminderWarningPhaseIsSeparateFromReminderPhase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCollege(t, "college-a")

	due := time.Date(2026, time.June, 3, 0, 0, 0, 0, time.UTC)
	seedQuery(t, env, models.QueryKindFile, due, "college-a")

	// Run inside the reminder window.
	beforeDue := due.Add(-24 * time.Hour)
	svc := newReminderForTest(t, env, beforeDue)
	require.NoError(t, svc.Run(ctx))
	require.Equal(t, 1, env.mailer.count())

	// Re-running before the due date stays quiet; after the due date the
	// warning phase fires exactly once.
	require.NoError(t, svc.Run(ctx))
	require.Equal(t, 1, env.mailer.count())

	overdue := due.Add(24 * time.Hour)
	svc = newReminderForTest(t, env, overdue)
	require.NoError(t, svc.Run(ctx))
	require.Equal(t, 2, env.mailer.count())

	require.NoError(t, svc.Run(ctx))
	require.Equal(t, 2, env.mailer.count())

	var logs []models.ReminderLog
	require.NoError(t, env.db.Order("phase").Find(&logs).Error)
	require.Len(t, logs, 2)
	require.Equal(t, models.ReminderPhaseBeforeDue, logs[0].Phase)
	require.Equal(t, models.ReminderPhaseOverdue, logs[1].Phase)
}

func TestReminderLinkQueryUsesLinkTemplates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCollege(t, "college-a")

	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	seedQuery(t, env, models.QueryKindLink, now.Add(24*time.Hour), "college-a")

	svc := newReminderForTest(t, env, now)
	require.NoError(t, svc.Run(ctx))

	require.Equal(t, 1, env.mailer.count())
	require.Contains(t, env.mailer.sent[0].Body, "https://portal.example.gov/q")
}

func TestReminderFailureReleasesClaimForRetry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCollege(t, "college-a")
	env.mailer.failFor["college-a@example.edu"] = errors.New("connection reset")

	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	seedQuery(t, env, models.QueryKindFile, now.Add(24*time.Hour), "college-a")

	svc := newReminderForTest(t, env, now)
	require.Error(t, svc.Run(ctx))
	require.Equal(t, 0, env.mailer.count())

	// No marker is left behind, so the next run retries and succeeds.
	var logs int64
	require.NoError(t, env.db.Model(&models.ReminderLog{}).Count(&logs).Error)
	require.Zero(t, logs)

	delete(env.mailer.failFor, "college-a@example.edu")
	require.NoError(t, svc.Run(ctx))
	require.Equal(t, 1, env.mailer.count())
}

func TestReminderPerPairFailureDoesNotStopBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var targets []string
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("college-%d", i)
		env.seedCollege(t, name)
		targets = append(targets, name)
	}
	env.mailer.failFor["college-2@example.edu"] = errors.New("mailbox full")

	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	seedQuery(t, env, models.QueryKindFile, now.Add(24*time.Hour), targets...)

	svc := newReminderForTest(t, env, now)
	require.Error(t, svc.Run(ctx))
	require.Equal(t, 4, env.mailer.count())
}

func TestReminderCredentialFaultAbortsRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var targets []string
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("college-%d", i)
		env.seedCollege(t, name)
		targets = append(targets, name)
	}
	env.mailer.failFor["college-0@example.edu"] = errors.New("token refresh failed: invalid_grant")

	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	seedQuery(t, env, models.QueryKindFile, now.Add(24*time.Hour), targets...)

	svc := newReminderForTest(t, env, now)
	require.Error(t, svc.Run(ctx))

	// The first send fails with a credential fault; nothing else is attempted.
	require.Equal(t, 0, env.mailer.count())
}

func TestReminderCheckQuerySingleQuery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCollege(t, "college-a")

	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	urgent := seedQuery(t, env, models.QueryKindFile, now.Add(12*time.Hour), "college-a")
	seedQuery(t, env, models.QueryKindFile, now.Add(30*24*time.Hour), "college-a")

	svc := newReminderForTest(t, env, now)
	require.NoError(t, svc.CheckQuery(ctx, urgent.ID))
	require.Equal(t, 1, env.mailer.count())
}
