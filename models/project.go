package models

import (
	"time"

	"gorm.io/gorm"
)

// Project visibility levels
const (
	VisibilityPublic        = "public"
	VisibilityPrivate       = "private"
	VisibilityCollaborators = "collaborators"
)

// Collaborator roles. Owner is a distinct tier held by Project.OwnerID and
// never appears in the collaborator list.
const (
	CollaboratorRoleEditor = "editor"
	CollaboratorRoleViewer = "viewer"
)

// Project is either personally owned (collaborator-based) or team-scoped
// (TeamID set); the two modes are mutually exclusive.
type Project struct {
	gorm.Model

	OwnerID     uint   `gorm:"not null;index" json:"owner_id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	Visibility string `gorm:"default:'private'" json:"visibility"` // public, private, collaborators
	TeamID     *uint  `gorm:"index" json:"team_id,omitempty"`

	// AllUsersAccess grants every authenticated account a floor-level role
	// on this project, regardless of explicit membership.
	AllUsersAccess string `gorm:"default:'none'" json:"all_users_access"` // none, view, edit

	// Public share channel, independent of visibility. The token stays on
	// the row when sharing is disabled, but a disabled token must resolve
	// like an unknown one.
	PublicShareToken   *string `gorm:"uniqueIndex" json:"-"`
	PublicShareEnabled bool    `gorm:"default:false" json:"public_share_enabled"`

	// Relations
	Owner         User                  `json:"-"`
	Team          *Team                 `json:"team,omitempty"`
	Collaborators []ProjectCollaborator `gorm:"foreignKey:ProjectID" json:"collaborators,omitempty"`
	Updates       []Update              `gorm:"foreignKey:ProjectID" json:"updates,omitempty"`
}

// ProjectCollaborator grants a user a role on a personally-owned project.
type ProjectCollaborator struct {
	gorm.Model
	ProjectID uint      `gorm:"not null;uniqueIndex:uni_project_collaborator" json:"project_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:uni_project_collaborator" json:"user_id"`
	Role      string    `gorm:"not null;default:'viewer'" json:"role"` // editor, viewer
	AddedAt   time.Time `json:"added_at"`

	Project Project `json:"-"`
	User    User    `json:"user,omitempty"`
}

// ValidVisibility reports whether s is a recognized visibility value.
func ValidVisibility(s string) bool {
	return s == VisibilityPublic || s == VisibilityPrivate || s == VisibilityCollaborators
}

// ValidCollaboratorRole reports whether s is a role a collaborator may hold.
func ValidCollaboratorRole(s string) bool {
	return s == CollaboratorRoleEditor || s == CollaboratorRoleViewer
}

// PublicProjectView is the allow-list projection exposed through the public
// share channel. New Project fields stay hidden here unless added explicitly.
type PublicProjectView struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PublicView projects the shareable subset of the project. No owner identity,
// no collaborator PII, no share or access-control fields.
func (p *Project) PublicView() PublicProjectView {
	return PublicProjectView{
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
