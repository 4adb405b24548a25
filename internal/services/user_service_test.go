package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/collegedesk/collegedesk/internal/models"
	apperrors "github.com/collegedesk/collegedesk/pkg/errors"
)

func TestUserAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCollege(t, "college-a")

	user, err := env.users.Authenticate(ctx, "college-a", "college-password")
	require.NoError(t, err)
	require.Equal(t, models.RoleCollege, user.Role)

	_, err = env.users.Authenticate(ctx, "college-a", "wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = env.users.Authenticate(ctx, "ghost", "college-password")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestCreateCollegeRejectsDuplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCollege(t, "college-a")

	_, err := env.users.CreateCollege(ctx, CreateCollegeInput{
		Username: "college-a",
		Email:    "other@example.edu",
		Password: "another-password",
	})
	require.Error(t, err)
}

func TestCreateCollegeValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []CreateCollegeInput{
		{Email: "a@example.edu", Password: "long-enough"},
		{Username: "college-a", Password: "long-enough"},
		{Username: "college-a", Email: "a@example.edu", Password: "short"},
	}
	for _, input := range cases {
		_, err := env.users.CreateCollege(ctx, input)
		require.Error(t, err)
	}
}

func TestCollegeEmailsSkipsUnknown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCollege(t, "college-a")

	emails, err := env.users.CollegeEmails(ctx, []string{"college-a", "ghost"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"college-a": "college-a@example.edu"}, emails)
}

func TestUpdatePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCollege(t, "college-a")

	require.ErrorIs(t,
		env.users.UpdatePassword(ctx, "college-a", "wrong", "new-password-1"),
		apperrors.ErrInvalidCredentials)

	require.NoError(t, env.users.UpdatePassword(ctx, "college-a", "college-password", "new-password-1"))

	_, err := env.users.Authenticate(ctx, "college-a", "new-password-1")
	require.NoError(t, err)
}

func TestListCollegesExcludesRegulator(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCollege(t, "college-b")
	env.seedCollege(t, "college-a")

	require.NoError(t, env.db.Create(&models.User{
		Username: "ddpu",
		Email:    "office@example.gov",
		Password: "!locked",
		Role:     models.RoleDDPU,
	}).Error)

	colleges, err := env.users.ListColleges(ctx)
	require.NoError(t, err)
	require.Len(t, colleges, 2)
	require.Equal(t, "college-a", colleges[0].Username)
}
