package models

import "gorm.io/gorm"

// Team roles. Admin and member both carry editor-equivalent write access on
// team-scoped projects; viewer is read-only.
const (
	TeamRoleAdmin  = "admin"
	TeamRoleMember = "member"
	TeamRoleViewer = "viewer"
)

// Team groups users for team-scoped projects
type Team struct {
	gorm.Model
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	CreatedBy   uint   `gorm:"not null" json:"created_by"`

	// Relations
	Members  []TeamMember `gorm:"foreignKey:TeamID" json:"members,omitempty"`
	Projects []Project    `gorm:"foreignKey:TeamID" json:"projects,omitempty"`
}

// TeamMember represents team members and their roles
type TeamMember struct {
	gorm.Model
	TeamID uint   `gorm:"not null;uniqueIndex:uni_team_member" json:"team_id"`
	UserID uint   `gorm:"not null;uniqueIndex:uni_team_member" json:"user_id"`
	Role   string `gorm:"not null;default:'member'" json:"role"` // admin, member, viewer

	// Relations
	Team Team `json:"-"`
	User User `json:"user,omitempty"`
}

// ValidTeamRole reports whether s is a recognized team role.
func ValidTeamRole(s string) bool {
	return s == TeamRoleAdmin || s == TeamRoleMember || s == TeamRoleViewer
}
