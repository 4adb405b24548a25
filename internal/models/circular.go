package models

// Circular represents an announcement published by the DDPU office to all
// colleges.
type Circular struct {
	BaseModel

	Title         string `gorm:"type:varchar(255);not null" json:"title"`
	Body          string `gorm:"type:text" json:"body"`
	AttachmentURL string `gorm:"type:text" json:"attachment_url,omitempty"`
	IssuedBy      string `gorm:"type:varchar(64)" json:"issued_by"`
}
