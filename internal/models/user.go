package models

// User roles. The DDPU office account issues queries, circulars and document
// requests; college accounts respond to them.
const (
	RoleDDPU    = "ddpu"
	RoleCollege = "college"
)

// User represents a portal account, either the regulator or a college.
type User struct {
	BaseModel

	Username string `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Name     string `gorm:"type:varchar(255)" json:"name"`
	Email    string `gorm:"type:varchar(255);not null" json:"email"`
	Password string `gorm:"type:varchar(255);not null" json:"-"`
	Role     string `gorm:"type:varchar(16);not null;index" json:"role"`
}
