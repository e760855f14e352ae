package models

import (
	"gorm.io/gorm"
)

// Account-wide access floor over every project the account can see.
const (
	AccessNone = "none"
	AccessView = "view"
	AccessEdit = "edit"
)

// User represents a user account in the system
type User struct {
	gorm.Model

	// Authentication fields
	Email         string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash  string `gorm:"not null" json:"-"`
	EmailVerified bool   `gorm:"default:false" json:"email_verified"`
	TokenVersion  int    `gorm:"default:0" json:"-"`

	// Google OAuth fields
	GoogleID       *string `gorm:"uniqueIndex" json:"google_id,omitempty"`
	GoogleImageURL *string `json:"google_image_url,omitempty"`

	// Profile information
	Name      *string `json:"name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Timezone  string  `gorm:"default:'UTC'" json:"timezone"`

	// Account status
	IsActive bool `gorm:"default:true" json:"is_active"`
	IsAdmin  bool `gorm:"default:false" json:"is_admin"`

	// GlobalProjectAccess grants this account a view/edit floor on every
	// project, current and future, independent of per-project grants.
	GlobalProjectAccess string `gorm:"default:'none'" json:"global_project_access"` // none, view, edit

	// Relations
	OwnedProjects []Project      `gorm:"foreignKey:OwnerID" json:"owned_projects,omitempty"`
	Memberships   []TeamMember   `gorm:"foreignKey:UserID" json:"memberships,omitempty"`
	Updates       []Update       `gorm:"foreignKey:AuthorID" json:"updates,omitempty"`
}

// DisplayName returns the user's name, falling back to the email local part.
func (u *User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	for i := 0; i < len(u.Email); i++ {
		if u.Email[i] == '@' {
			return u.Email[:i]
		}
	}
	return u.Email
}

// ValidAccessLevel reports whether s is a recognized access floor value.
func ValidAccessLevel(s string) bool {
	return s == AccessNone || s == AccessView || s == AccessEdit
}
