package models

import "time"

// Reminder phases tied to a query due date.
const (
	ReminderPhaseBeforeDue = "reminder"
	ReminderPhaseOverdue   = "warning"
)

// ReminderLog records that a reminder email was sent for a (query, college,
// phase) triple. The composite unique index is the compare-and-set marker the
// scheduler claims before sending, which keeps repeated scans idempotent.
type ReminderLog struct {
	BaseModel

	QueryID string    `gorm:"type:uuid;not null;uniqueIndex:idx_reminder_once" json:"query_id"`
	College string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_reminder_once" json:"college"`
	Phase   string    `gorm:"type:varchar(16);not null;uniqueIndex:idx_reminder_once" json:"phase"`
	SentAt  time.Time `json:"sent_at"`
}
