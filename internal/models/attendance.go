package models

import "time"

// AttendanceEntry records one college's mark for one zone-local calendar day.
// Day is the calendar date in the configured timezone (YYYY-MM-DD); the
// composite unique index makes the insert an atomic at-most-once operation.
type AttendanceEntry struct {
	BaseModel

	Day      string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_attendance_day_college" json:"day"`
	College  string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_attendance_day_college" json:"college"`
	Status   string    `gorm:"type:varchar(16);not null;default:'present'" json:"status"`
	MarkedAt time.Time `json:"marked_at"`
}
