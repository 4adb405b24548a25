package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/collegedesk/collegedesk/pkg/errors"
)

func newCircularForTest(t *testing.T, env *testEnv) *CircularService {
	t.Helper()

	svc, err := NewCircularService(env.db, env.notifications, env.users, nil, env.courier)
	require.NoError(t, err)
	return svc
}

func TestCircularPublishFansOutToAllColleges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCollege(t, "college-a")
	env.seedCollege(t, "college-b")

	svc := newCircularForTest(t, env)
	circular, err := svc.Publish(ctx, PublishCircularInput{
		Title:    "Revised exam calendar",
		Body:     "The exam calendar has been revised.",
		IssuedBy: "ddpu",
	})
	require.NoError(t, err)
	require.NotEmpty(t, circular.ID)

	require.EqualValues(t, 1, env.unreadCount(t, "college-a"))
	require.EqualValues(t, 1, env.unreadCount(t, "college-b"))
	require.ElementsMatch(t,
		[]string{"college-a@example.edu", "college-b@example.edu"},
		env.mailer.sentTo())
}

func TestCircularSurvivesEmailFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCollege(t, "college-a")
	env.mailer.failFor["college-a@example.edu"] = errors.New("relay rejected")

	svc := newCircularForTest(t, env)
	circular, err := svc.Publish(ctx, PublishCircularInput{Title: "Holiday notice"})
	require.NoError(t, err)

	// The circular is saved and listed despite the failed email.
	got, err := svc.Get(ctx, circular.ID)
	require.NoError(t, err)
	require.Equal(t, "Holiday notice", got.Title)
}

func TestCircularListAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	svc := newCircularForTest(t, env)
	for _, title := range []string{"one", "two"} {
		_, err := svc.Publish(ctx, PublishCircularInput{Title: title})
		require.NoError(t, err)
	}

	circulars, err := svc.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, circulars, 2)

	require.NoError(t, svc.Delete(ctx, circulars[0].ID))
	require.ErrorIs(t, svc.Delete(ctx, circulars[0].ID), apperrors.ErrNotFound)

	remaining, err := svc.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestCircularPublishRequiresTitle(t *testing.T) {
	env := newTestEnv(t)
	svc := newCircularForTest(t, env)

	_, err := svc.Publish(context.Background(), PublishCircularInput{Body: "no title"})
	require.Error(t, err)
}
