package models

// ChatMessage belongs to the conversation between the DDPU office and one
// college. College holds the conversation key; SenderRole records which side
// wrote the message.
type ChatMessage struct {
	BaseModel

	College    string `gorm:"type:varchar(64);not null;index" json:"college"`
	SenderRole string `gorm:"type:varchar(16);not null" json:"sender_role"`
	Body       string `gorm:"type:text;not null" json:"body"`
}
