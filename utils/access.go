package utils

import (
	"errors"

	"gorm.io/gorm"

	"crewlog/models"
)

// Role is the project-facing access tier. The order matters: comparisons like
// role.AtLeast(RoleEditor) are the single authorization primitive used by
// every route, replacing ad hoc string checks.
type Role int

const (
	RoleNone Role = iota
	RoleViewer
	RoleEditor
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleEditor:
		return "editor"
	case RoleViewer:
		return "viewer"
	default:
		return "none"
	}
}

// AtLeast reports whether r grants at least the given tier.
func (r Role) AtLeast(min Role) bool {
	return r >= min
}

// Operation names an action gated by a resolved role.
type Operation int

const (
	OpViewProject Operation = iota
	OpPostUpdate
	OpEditProject
	OpInviteCollaborator
	OpManageShare
	OpManageCollaborators
	OpManageAccess
	OpDeleteProject
)

// CanPerform is the one place operation gating lives. Editors may invite
// collaborators and manage public-share settings; removing, promoting or
// demoting collaborators, changing access floors and deleting the project
// stay owner-only. Self-removal is handled at the route, not here.
func CanPerform(role Role, op Operation) bool {
	switch op {
	case OpViewProject:
		return role.AtLeast(RoleViewer)
	case OpPostUpdate, OpEditProject, OpInviteCollaborator, OpManageShare:
		return role.AtLeast(RoleEditor)
	case OpManageCollaborators, OpManageAccess, OpDeleteProject:
		return role == RoleOwner
	}
	return false
}

// ResolveRole computes the effective role the user holds on the project.
// Precedence, highest first:
//
//  1. ownership (never downgraded)
//  2. team membership, when the project is team-scoped
//  3. collaborator entry, when the project is personally owned
//  4. the user's global access floor (raise only)
//  5. the project's all-users access floor (raise only, applied after 4)
//  6. implicit viewer on public visibility
//
// "No access" is RoleNone, never an error: the route decides whether that
// becomes a 403 or a 404. A nil user is an anonymous caller and can only
// reach viewer through public visibility.
func ResolveRole(db *gorm.DB, user *models.User, project *models.Project) (Role, error) {
	if user == nil {
		if project.Visibility == models.VisibilityPublic {
			return RoleViewer, nil
		}
		return RoleNone, nil
	}

	if project.OwnerID == user.ID {
		return RoleOwner, nil
	}

	role := RoleNone
	if project.TeamID != nil {
		var member models.TeamMember
		err := db.Where("team_id = ? AND user_id = ?", *project.TeamID, user.ID).
			First(&member).Error
		switch {
		case err == nil:
			role = teamRoleToProjectRole(member.Role)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return RoleNone, err
		}
	} else {
		var collab models.ProjectCollaborator
		err := db.Where("project_id = ? AND user_id = ?", project.ID, user.ID).
			First(&collab).Error
		switch {
		case err == nil:
			role = collaboratorRoleToRole(collab.Role)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return RoleNone, err
		}
	}

	// Floors raise, never lower. Global access wins over the project default
	// because it is applied first and all-users access can only raise again.
	if floor := AccessFloor(user.GlobalProjectAccess); floor > role {
		role = floor
	}
	if floor := AccessFloor(project.AllUsersAccess); floor > role {
		role = floor
	}

	if role == RoleNone && project.Visibility == models.VisibilityPublic {
		role = RoleViewer
	}

	return role, nil
}

// AccessFloor maps a view/edit access level onto the role it guarantees.
func AccessFloor(level string) Role {
	switch level {
	case models.AccessEdit:
		return RoleEditor
	case models.AccessView:
		return RoleViewer
	default:
		return RoleNone
	}
}

// Team admin and member both carry write access on the team's projects;
// only the explicit viewer role is read-only.
func teamRoleToProjectRole(teamRole string) Role {
	switch teamRole {
	case models.TeamRoleAdmin, models.TeamRoleMember:
		return RoleEditor
	case models.TeamRoleViewer:
		return RoleViewer
	default:
		return RoleNone
	}
}

func collaboratorRoleToRole(role string) Role {
	switch role {
	case models.CollaboratorRoleEditor:
		return RoleEditor
	case models.CollaboratorRoleViewer:
		return RoleViewer
	default:
		return RoleNone
	}
}
