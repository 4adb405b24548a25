package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/collegedesk/collegedesk/internal/models"
)

func TestStatsOverviewCounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCollege(t, "college-a")
	env.seedCollege(t, "college-b")

	queries := newQueryServiceForTest(t, env)
	_, err := queries.Create(ctx, CreateQueryInput{
		Kind:    models.QueryKindFile,
		Subject: "Open query",
		DueDate: dueInDays(10),
		Targets: []string{"college-a", "college-b"},
	})
	require.NoError(t, err)

	answered, err := queries.Create(ctx, CreateQueryInput{
		Kind:    models.QueryKindFile,
		Subject: "Answered query",
		DueDate: dueInDays(10),
		Targets: []string{"college-a"},
	})
	require.NoError(t, err)
	_, err = queries.Respond(ctx, RespondInput{
		QueryID: answered.ID,
		College: "college-a",
		FileURL: "/uploads/done.pdf",
	})
	require.NoError(t, err)

	window := AttendanceWindow{Location: time.UTC, OpenHour: 0, CloseHour: 24}
	stats, err := NewStatsService(env.db, window)
	require.NoError(t, err)

	overview, err := stats.Overview(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, overview.Colleges)
	require.EqualValues(t, 2, overview.Queries)
	require.EqualValues(t, 1, overview.OpenQueries)
	require.EqualValues(t, 2, overview.PendingResponses)
	require.EqualValues(t, 0, overview.Circulars)
}

func TestStatsResponseRates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCollege(t, "college-a")
	env.seedCollege(t, "college-b")

	queries := newQueryServiceForTest(t, env)
	query, err := queries.Create(ctx, CreateQueryInput{
		Kind:    models.QueryKindFile,
		Subject: "Half done",
		DueDate: dueInDays(10),
		Targets: []string{"college-a", "college-b"},
	})
	require.NoError(t, err)
	_, err = queries.Respond(ctx, RespondInput{
		QueryID: query.ID,
		College: "college-a",
		FileURL: "/uploads/a.pdf",
	})
	require.NoError(t, err)

	stats, err := NewStatsService(env.db, AttendanceWindow{Location: time.UTC, OpenHour: 0, CloseHour: 24})
	require.NoError(t, err)

	rates, err := stats.ResponseRates(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rates, 1)
	require.Equal(t, 2, rates[0].Targets)
	require.Equal(t, 1, rates[0].Responded)
}
