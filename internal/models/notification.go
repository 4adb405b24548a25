package models

import "gorm.io/datatypes"

// Notification kinds, one per triggering event type.
const (
	NotificationKindChat      = "chat"
	NotificationKindQuery     = "query"
	NotificationKindCircular  = "circular"
	NotificationKindLinkQuery = "link-query"
	NotificationKindDocument  = "document"
)

// Notification represents an in-app notification for a recipient college or
// the DDPU account. Message is stored encrypted (ivHex:cipherHex) and only
// decrypted at the read boundary.
type Notification struct {
	BaseModel

	Recipient string         `gorm:"type:varchar(64);not null;index" json:"recipient"`
	Kind      string         `gorm:"type:varchar(32);not null" json:"kind"`
	Title     string         `gorm:"type:varchar(255);not null" json:"title"`
	Message   string         `gorm:"type:text;not null" json:"message"`
	Link      string         `gorm:"type:text" json:"link"`
	Metadata  datatypes.JSON `json:"metadata"`

	IsRead bool `gorm:"default:false;index" json:"is_read"`
}
