package reminders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	testutil "github.com/collegedesk/collegedesk/internal/database/testutil"
	"github.com/collegedesk/collegedesk/internal/models"
	"github.com/collegedesk/collegedesk/internal/services"
	"github.com/collegedesk/collegedesk/pkg/mail"
)

type countingMailer struct {
	mu   sync.Mutex
	sent int
}

func (m *countingMailer) Send(context.Context, mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent++
	return nil
}

func (m *countingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

func TestSchedulerRunOnceScansQueries(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	require.NoError(t, db.Create(&models.User{
		Username: "college-a",
		Email:    "college-a@example.edu",
		Password: "hashed",
		Role:     models.RoleCollege,
	}).Error)

	query := models.Query{
		Kind:    models.QueryKindFile,
		Subject: "Overdue return",
		DueDate: time.Now().UTC().Add(-24 * time.Hour),
		Targets: []byte(`["college-a"]`),
	}
	require.NoError(t, db.Create(&query).Error)
	require.NoError(t, db.Create(&models.QueryResponse{
		QueryID: query.ID,
		College: "college-a",
		Status:  models.ResponseStatusPending,
	}).Error)

	users, err := services.NewUserService(db)
	require.NoError(t, err)

	mailer := &countingMailer{}
	reminders, err := services.NewReminderService(db, users, mail.NewCourier(mailer), 2)
	require.NoError(t, err)

	scheduler, err := NewScheduler(reminders, WithSchedule("@daily"))
	require.NoError(t, err)

	require.NoError(t, scheduler.RunOnce(context.Background()))
	require.Equal(t, 1, mailer.count())

	// A second immediate run resends nothing.
	require.NoError(t, scheduler.RunOnce(context.Background()))
	require.Equal(t, 1, mailer.count())
}

func TestSchedulerStartRegistersCronJob(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	users, err := services.NewUserService(db)
	require.NoError(t, err)
	reminders, err := services.NewReminderService(db, users, nil, 2)
	require.NoError(t, err)

	c := cron.New(cron.WithLogger(cron.DiscardLogger))
	scheduler, err := NewScheduler(reminders, WithCron(c), WithSchedule("@every 1h"))
	require.NoError(t, err)

	require.NoError(t, scheduler.Start())
	require.Len(t, c.Entries(), 1)

	done := scheduler.Stop().Done()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	users, err := services.NewUserService(db)
	require.NoError(t, err)
	reminders, err := services.NewReminderService(db, users, nil, 2)
	require.NoError(t, err)

	scheduler, err := NewScheduler(reminders, WithSchedule("not-a-spec"))
	require.NoError(t, err)
	require.Error(t, scheduler.Start())
}
