package models

import (
	"time"

	"gorm.io/datatypes"
)

// Query kinds. A file query expects an uploaded response; a link query is
// answered by opening the external link.
const (
	QueryKindFile = "file"
	QueryKindLink = "link"
)

// Response statuses for a (query, college) pair.
const (
	ResponseStatusPending   = "Pending"
	ResponseStatusResponded = "Responded"
)

// Query represents a DDPU-issued query fanned out to a set of colleges.
// Both variants share this shape; Kind selects the payload field.
type Query struct {
	BaseModel

	Kind        string         `gorm:"type:varchar(16);not null;index" json:"kind"`
	Subject     string         `gorm:"type:varchar(255);not null" json:"subject"`
	Description string         `gorm:"type:text" json:"description"`
	DueDate     time.Time      `gorm:"index" json:"due_date"`
	FileURL     string         `gorm:"type:text" json:"file_url,omitempty"`
	Link        string         `gorm:"type:text" json:"link,omitempty"`
	IssuedBy    string         `gorm:"type:varchar(64)" json:"issued_by"`
	Targets     datatypes.JSON `json:"targets"`

	Responses []QueryResponse `gorm:"constraint:OnDelete:CASCADE" json:"responses,omitempty"`
}

// QueryResponse tracks one college's response to a query. The composite
// unique index enforces at most one response row per (query, college).
type QueryResponse struct {
	BaseModel

	QueryID     string     `gorm:"type:uuid;not null;uniqueIndex:idx_query_response_college" json:"query_id"`
	College     string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_query_response_college" json:"college"`
	Status      string     `gorm:"type:varchar(16);not null;default:'Pending'" json:"status"`
	RespondedAt *time.Time `json:"responded_at"`
	FileURL     string     `gorm:"type:text" json:"file_url,omitempty"`
}
