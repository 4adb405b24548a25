package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/collegedesk/collegedesk/internal/models"
	apperrors "github.com/collegedesk/collegedesk/pkg/errors"
)

func newDocumentsForTest(t *testing.T, env *testEnv) *DocumentService {
	t.Helper()

	svc, err := NewDocumentService(env.db, env.notifications, env.users, nil, env.courier)
	require.NoError(t, err)
	return svc
}

func TestDocumentCategoryFansOutToAllColleges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCollege(t, "college-a")
	env.seedCollege(t, "college-b")

	svc := newDocumentsForTest(t, env)
	category, err := svc.CreateCategory(ctx, CreateCategoryInput{
		Name:     "Fire safety certificates",
		IssuedBy: "ddpu",
	})
	require.NoError(t, err)
	require.NotEmpty(t, category.ID)

	require.EqualValues(t, 1, env.unreadCount(t, "college-a"))
	require.EqualValues(t, 1, env.unreadCount(t, "college-b"))
	require.Equal(t, 2, env.mailer.count())
}

func TestDocumentUploadCreatesAndReplaces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCollege(t, "college-a")

	svc := newDocumentsForTest(t, env)
	category, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Affiliation letters"})
	require.NoError(t, err)

	upload, err := svc.Upload(ctx, UploadDocumentInput{
		CategoryID: category.ID,
		College:    "college-a",
		FileURL:    "/uploads/v1.pdf",
	})
	require.NoError(t, err)
	require.Equal(t, "/uploads/v1.pdf", upload.FileURL)

	// Re-upload replaces the file, no second row appears.
	replaced, err := svc.Upload(ctx, UploadDocumentInput{
		CategoryID: category.ID,
		College:    "college-a",
		FileURL:    "/uploads/v2.pdf",
	})
	require.NoError(t, err)
	require.Equal(t, "/uploads/v2.pdf", replaced.FileURL)

	uploads, err := svc.ListUploads(ctx, category.ID)
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	require.Equal(t, "/uploads/v2.pdf", uploads[0].FileURL)

	// The regulator is notified of each submission.
	require.EqualValues(t, 2, env.unreadCount(t, models.RoleDDPU))
}

func TestDocumentUploadUnknownCategory(t *testing.T) {
	env := newTestEnv(t)
	svc := newDocumentsForTest(t, env)

	_, err := svc.Upload(context.Background(), UploadDocumentInput{
		CategoryID: "missing",
		College:    "college-a",
		FileURL:    "/uploads/v1.pdf",
	})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDocumentRemindPendingSkipsUploaded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCollege(t, "college-a")
	env.seedCollege(t, "college-b")
	env.seedCollege(t, "college-c")

	svc := newDocumentsForTest(t, env)
	category, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Lab inventories"})
	require.NoError(t, err)
	env.mailer.sent = nil

	_, err = svc.Upload(ctx, UploadDocumentInput{
		CategoryID: category.ID,
		College:    "college-b",
		FileURL:    "/uploads/inventory.xlsx",
	})
	require.NoError(t, err)

	reminded, err := svc.RemindPending(ctx, category.ID)
	require.NoError(t, err)
	require.Equal(t, 2, reminded)
	require.ElementsMatch(t,
		[]string{"college-a@example.edu", "college-c@example.edu"},
		env.mailer.sentTo())
}
