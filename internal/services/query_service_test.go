package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/collegedesk/collegedesk/internal/models"
	apperrors "github.com/collegedesk/collegedesk/pkg/errors"
)

func newQueryServiceForTest(t *testing.T, env *testEnv) *QueryService {
	t.Helper()

	svc, err := NewQueryService(env.db, env.notifications, env.users, nil, env.courier)
	require.NoError(t, err)
	return svc
}

func dueInDays(days int) time.Time {
	return time.Now().UTC().Add(time.Duration(days) * 24 * time.Hour)
}

func TestQueryCreateFansOutToAllTargets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	targets := []string{"college-a", "college-b", "college-c"}
	for _, name := range targets {
		env.seedCollege(t, name)
	}

	svc := newQueryServiceForTest(t, env)
	query, err := svc.Create(ctx, CreateQueryInput{
		Kind:    models.QueryKindFile,
		Subject: "Annual inspection report",
		DueDate: dueInDays(30),
		Targets: targets,
		FileURL: "/uploads/template.pdf",
	})
	require.NoError(t, err)
	require.Equal(t, targets, query.Targets)

	// One pending response row per target.
	var responses []models.QueryResponse
	require.NoError(t, env.db.Where("query_id = ?", query.ID).Find(&responses).Error)
	require.Len(t, responses, 3)
	for _, response := range responses {
		require.Equal(t, models.ResponseStatusPending, response.Status)
	}

	// One notification and one email per target.
	for _, name := range targets {
		require.EqualValues(t, 1, env.unreadCount(t, name))
	}
	require.ElementsMatch(t,
		[]string{"college-a@example.edu", "college-b@example.edu", "college-c@example.edu"},
		env.mailer.sentTo())
}

func TestQueryCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newQueryServiceForTest(t, env)

	cases := []CreateQueryInput{
		{Kind: "bogus", Subject: "s", DueDate: dueInDays(1), Targets: []string{"a"}},
		{Kind: models.QueryKindFile, DueDate: dueInDays(1), Targets: []string{"a"}},
		{Kind: models.QueryKindFile, Subject: "s", Targets: []string{"a"}},
		{Kind: models.QueryKindFile, Subject: "s", DueDate: dueInDays(1)},
		{Kind: models.QueryKindLink, Subject: "s", DueDate: dueInDays(1), Targets: []string{"a"}},
	}
	for i, input := range cases {
		_, err := svc.Create(ctx, input)
		require.Error(t, err, "case %d", i)
	}
}

func TestQueryFanOutIsolatesSingleEmailFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var targets []string
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("college-%d", i)
		env.seedCollege(t, name)
		targets = append(targets, name)
	}
	env.mailer.failFor["college-2@example.edu"] = errors.New("mailbox temporarily unavailable")

	svc := newQueryServiceForTest(t, env)
	_, err := svc.Create(ctx, CreateQueryInput{
		Kind:    models.QueryKindFile,
		Subject: "Staffing data",
		DueDate: dueInDays(30),
		Targets: targets,
	})
	require.NoError(t, err)

	// The other four still got their email and every college its notification.
	require.Equal(t, 4, env.mailer.count())
	for _, name := range targets {
		require.EqualValues(t, 1, env.unreadCount(t, name))
	}
}

func TestQueryFanOutAbortsOnCredentialFault(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var targets []string
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("college-%d", i)
		env.seedCollege(t, name)
		targets = append(targets, name)
	}
	env.mailer.failFor["college-0@example.edu"] = errors.New("oauth refresh rejected: invalid_grant")

	svc := newQueryServiceForTest(t, env)
	_, err := svc.Create(ctx, CreateQueryInput{
		Kind:    models.QueryKindFile,
		Subject: "Staffing data",
		DueDate: dueInDays(30),
		Targets: targets,
	})
	require.NoError(t, err)

	// First send hits a credential fault; no further sends are attempted.
	require.Equal(t, 0, env.mailer.count())
}

func TestQueryRespondTransitionsPendingToResponded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCollege(t, "college-a")

	svc := newQueryServiceForTest(t, env)
	query, err := svc.Create(ctx, CreateQueryInput{
		Kind:    models.QueryKindFile,
		Subject: "Lab safety audit",
		DueDate: dueInDays(10),
		Targets: []string{"college-a"},
	})
	require.NoError(t, err)

	response, err := svc.Respond(ctx, RespondInput{
		QueryID: query.ID,
		College: "college-a",
		FileURL: "/uploads/audit.pdf",
	})
	require.NoError(t, err)
	require.Equal(t, models.ResponseStatusResponded, response.Status)
	require.NotNil(t, response.RespondedAt)
	require.Equal(t, "/uploads/audit.pdf", response.FileURL)

	// Second response is rejected, no duplicate row appears.
	_, err = svc.Respond(ctx, RespondInput{
		QueryID: query.ID,
		College: "college-a",
		FileURL: "/uploads/other.pdf",
	})
	require.ErrorIs(t, err, apperrors.ErrAlreadyResponded)

	var count int64
	require.NoError(t, env.db.Model(&models.QueryResponse{}).
		Where("query_id = ?", query.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)

	// The regulator is notified of the response.
	require.EqualValues(t, 1, env.unreadCount(t, models.RoleDDPU))
}

func TestQueryRespondRejectsNonTargets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCollege(t, "college-a")

	svc := newQueryServiceForTest(t, env)
	query, err := svc.Create(ctx, CreateQueryInput{
		Kind:    models.QueryKindFile,
		Subject: "Lab safety audit",
		DueDate: dueInDays(10),
		Targets: []string{"college-a"},
	})
	require.NoError(t, err)

	_, err = svc.Respond(ctx, RespondInput{
		QueryID: query.ID,
		College: "college-b",
		FileURL: "/uploads/audit.pdf",
	})
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestLinkQueryOpenMarksRespondedIdempotently(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCollege(t, "college-a")

	svc := newQueryServiceForTest(t, env)
	query, err := svc.Create(ctx, CreateQueryInput{
		Kind:    models.QueryKindLink,
		Subject: "Online census form",
		DueDate: dueInDays(10),
		Link:    "https://census.example.gov/form",
		Targets: []string{"college-a"},
	})
	require.NoError(t, err)

	link, err := svc.OpenLink(ctx, query.ID, "college-a")
	require.NoError(t, err)
	require.Equal(t, "https://census.example.gov/form", link)

	var response models.QueryResponse
	require.NoError(t, env.db.Where("query_id = ? AND college = ?", query.ID, "college-a").
		First(&response).Error)
	require.Equal(t, models.ResponseStatusResponded, response.Status)

	// Opening again stays successful and does not duplicate anything.
	link, err = svc.OpenLink(ctx, query.ID, "college-a")
	require.NoError(t, err)
	require.Equal(t, "https://census.example.gov/form", link)

	var count int64
	require.NoError(t, env.db.Model(&models.QueryResponse{}).
		Where("query_id = ?", query.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestQueryListFiltersByCollege(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCollege(t, "college-a")
	env.seedCollege(t, "college-b")

	svc := newQueryServiceForTest(t, env)
	_, err := svc.Create(ctx, CreateQueryInput{
		Kind:    models.QueryKindFile,
		Subject: "For A only",
		DueDate: dueInDays(5),
		Targets: []string{"college-a"},
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateQueryInput{
		Kind:    models.QueryKindFile,
		Subject: "For both",
		DueDate: dueInDays(5),
		Targets: []string{"college-a", "college-b"},
	})
	require.NoError(t, err)

	forB, err := svc.List(ctx, ListQueriesInput{College: "college-b"})
	require.NoError(t, err)
	require.Len(t, forB, 1)
	require.Equal(t, "For both", forB[0].Subject)
	require.Len(t, forB[0].Responses, 1)
	require.Equal(t, "college-b", forB[0].Responses[0].College)

	all, err := svc.List(ctx, ListQueriesInput{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestQueryDeleteCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCollege(t, "college-a")

	svc := newQueryServiceForTest(t, env)
	query, err := svc.Create(ctx, CreateQueryInput{
		Kind:    models.QueryKindFile,
		Subject: "To be removed",
		DueDate: dueInDays(5),
		Targets: []string{"college-a"},
	})
	require.NoError(t, err)

	require.NoError(t, env.db.Create(&models.ReminderLog{
		QueryID: query.ID,
		College: "college-a",
		Phase:   models.ReminderPhaseBeforeDue,
		SentAt:  time.Now().UTC(),
	}).Error)

	require.NoError(t, svc.Delete(ctx, query.ID))

	var responses, logs int64
	require.NoError(t, env.db.Model(&models.QueryResponse{}).
		Where("query_id = ?", query.ID).Count(&responses).Error)
	require.NoError(t, env.db.Model(&models.ReminderLog{}).
		Where("query_id = ?", query.ID).Count(&logs).Error)
	require.Zero(t, responses)
	require.Zero(t, logs)

	require.ErrorIs(t, svc.Delete(ctx, query.ID), apperrors.ErrNotFound)
}

func TestQueryCreateRunsImmediateDueCheck(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCollege(t, "college-a")

	reminders, err := NewReminderService(env.db, env.users, env.courier, 2)
	require.NoError(t, err)

	svc := newQueryServiceForTest(t, env)
	svc.SetDueChecker(reminders)

	// Due tomorrow: already inside the reminder window at creation time, so
	// the create itself triggers the reminder email on top of the new-query one.
	_, err = svc.Create(ctx, CreateQueryInput{
		Kind:    models.QueryKindFile,
		Subject: "Urgent return",
		DueDate: dueInDays(1),
		Targets: []string{"college-a"},
	})
	require.NoError(t, err)

	require.Equal(t, 2, env.mailer.count())
}
