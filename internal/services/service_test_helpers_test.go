package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/collegedesk/collegedesk/internal/database/testutil"
	"github.com/collegedesk/collegedesk/internal/models"
	"github.com/collegedesk/collegedesk/pkg/mail"
)

// recordingMailer captures outbound messages and can simulate per-recipient failures.
type recordingMailer struct {
	mu      sync.Mutex
	sent    []mail.Message
	failFor map[string]error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(msg.To) > 0 {
		if err, ok := m.failFor[msg.To[0]]; ok {
			return err
		}
	}

	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) sentTo() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for _, msg := range m.sent {
		out = append(out, msg.To...)
	}
	return out
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type testEnv struct {
	db            *gorm.DB
	mailer        *recordingMailer
	courier       *mail.Courier
	users         *UserService
	notifications *NotificationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	users, err := NewUserService(db)
	require.NoError(t, err)

	notifications, err := NewNotificationService(db, nil, "unit-test-secret")
	require.NoError(t, err)

	mailer := &recordingMailer{failFor: map[string]error{}}
	return &testEnv{
		db:            db,
		mailer:        mailer,
		courier:       mail.NewCourier(mailer),
		users:         users,
		notifications: notifications,
	}
}

func (e *testEnv) seedCollege(t *testing.T, username string) *models.User {
	t.Helper()

	user, err := e.users.CreateCollege(context.Background(), CreateCollegeInput{
		Username: username,
		Name:     username,
		Email:    username + "@example.edu",
		Password: "college-password",
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) unreadCount(t *testing.T, recipient string) int64 {
	t.Helper()

	var count int64
	require.NoError(t, e.db.Model(&models.Notification{}).
		Where("recipient = ? AND is_read = ?", recipient, false).
		Count(&count).Error)
	return count
}
