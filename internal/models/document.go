package models

// DocumentCategory is a compliance artifact request issued by the DDPU office.
type DocumentCategory struct {
	BaseModel

	Name        string `gorm:"type:varchar(255);not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	IssuedBy    string `gorm:"type:varchar(64)" json:"issued_by"`
}

// DocumentUpload is a college submission against a document category.
type DocumentUpload struct {
	BaseModel

	CategoryID string `gorm:"type:uuid;not null;index" json:"category_id"`
	College    string `gorm:"type:varchar(64);not null;index" json:"college"`
	FileURL    string `gorm:"type:text;not null" json:"file_url"`
}
