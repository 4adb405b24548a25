package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "Asia/Kolkata", cfg.Attendance.Timezone)
	require.Equal(t, 9, cfg.Attendance.OpenHour)
	require.Equal(t, 21, cfg.Attendance.CloseHour)
	require.Equal(t, "@daily", cfg.Reminders.Schedule)
	require.Equal(t, 2, cfg.Reminders.ThresholdDays)
	require.False(t, cfg.Email.SMTP.Enabled)
}

func TestLoadConfigReadsFile(t *testing.T) {
	dir := t.TempDir()
	contents := []byte(`
server:
  port: 9001
  log_level: debug
attendance:
  timezone: Asia/Kolkata
  open_hour: 8
  close_hour: 20
reminders:
  threshold_days: 3
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), contents, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, 9001, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, 8, cfg.Attendance.OpenHour)
	require.Equal(t, 3, cfg.Reminders.ThresholdDays)
}

func TestLoadConfigRejectsBadWindow(t *testing.T) {
	dir := t.TempDir()
	contents := []byte(`
attendance:
  open_hour: 22
  close_hour: 9
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), contents, 0o600))

	_, err := LoadConfig(dir)
	require.Error(t, err)
}

func TestLoadConfigRejectsBadTimezone(t *testing.T) {
	dir := t.TempDir()
	contents := []byte(`
attendance:
  timezone: Mars/Olympus
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), contents, 0o600))

	_, err := LoadConfig(dir)
	require.Error(t, err)
}
