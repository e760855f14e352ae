package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"crewlog/models"
	"crewlog/utils"
)

// ProjectController handles project CRUD. Every handler resolves the
// caller's role per request before touching the row.
//
// 404 vs 403 policy: fetching an arbitrary project id without holding any
// role returns 404 so the id's existence is not confirmed; holding some role
// but an insufficient one returns 403, because existence is already known.
type ProjectController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewProjectController(db *gorm.DB, logger *log.Logger) *ProjectController {
	return &ProjectController{DB: db, Logger: logger}
}

type CreateProjectRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	Visibility  string `json:"visibility" validate:"omitempty,oneof=public private collaborators"`
	TeamID      *uint  `json:"team_id"`
}

type UpdateProjectRequest struct {
	Name           *string `json:"name" validate:"omitempty,max=200"`
	Description    *string `json:"description" validate:"omitempty,max=2000"`
	Visibility     *string `json:"visibility" validate:"omitempty,oneof=public private collaborators"`
	AllUsersAccess *string `json:"all_users_access" validate:"omitempty,oneof=none view edit"`
}

// findProject loads a project by id, distinguishing absence from failure.
func findProject(db *gorm.DB, id uint) (*models.Project, error) {
	var project models.Project
	if err := db.First(&project, id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// requireProjectRole loads the project from the :id param and resolves the
// caller's role. It writes the error response itself when the project is
// missing or hidden, so callers just check ok.
func requireProjectRole(c *fiber.Ctx, db *gorm.DB) (*models.Project, utils.Role, bool) {
	user := c.Locals("user").(*models.User)

	project, err := findProject(db, utils.ParseUint(c.Params("id")))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found")
		} else {
			utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load project")
		}
		return nil, utils.RoleNone, false
	}

	role, err := utils.ResolveRole(db, user, project)
	if err != nil {
		utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to resolve access")
		return nil, utils.RoleNone, false
	}

	if role == utils.RoleNone {
		// Existence stays hidden from strangers
		utils.ErrorResponse(c, fiber.StatusNotFound, "Project not found")
		return nil, utils.RoleNone, false
	}

	return project, role, true
}

func (pc *ProjectController) CreateProject(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req CreateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = models.VisibilityPrivate
	}

	// A team-scoped project can only be created by someone with write access
	// in that team.
	if req.TeamID != nil {
		var member models.TeamMember
		err := pc.DB.Where("team_id = ? AND user_id = ?", *req.TeamID, user.ID).First(&member).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorResponse(c, fiber.StatusNotFound, "Team not found")
			}
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check team membership")
		}
		if member.Role == models.TeamRoleViewer {
			return utils.ErrorResponse(c, fiber.StatusForbidden, "Team viewers cannot create projects")
		}
	}

	project := models.Project{
		OwnerID:     user.ID,
		Name:        req.Name,
		Description: req.Description,
		Visibility:  visibility,
		TeamID:      req.TeamID,
	}

	if err := pc.DB.Create(&project).Error; err != nil {
		pc.Logger.Printf("Failed to create project: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create project")
	}

	utils.LogEvent("project_created", map[string]interface{}{
		"project_id": project.ID,
		"owner_id":   user.ID,
		"team_id":    req.TeamID,
	})

	return c.Status(fiber.StatusCreated).JSON(project)
}

// GetProjects lists projects the caller is attached to: owned, collaborating,
// or via team membership. Accounts with a global access floor see everything.
func (pc *ProjectController) GetProjects(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var projects []models.Project
	query := pc.DB.Order("updated_at DESC")

	if utils.AccessFloor(user.GlobalProjectAccess) > utils.RoleNone {
		if err := query.Find(&projects).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list projects")
		}
		return c.JSON(projects)
	}

	err := query.
		Where(`owner_id = ?
			OR id IN (SELECT project_id FROM project_collaborators WHERE user_id = ? AND deleted_at IS NULL)
			OR team_id IN (SELECT team_id FROM team_members WHERE user_id = ? AND deleted_at IS NULL)`,
			user.ID, user.ID, user.ID).
		Find(&projects).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list projects")
	}

	return c.JSON(projects)
}

func (pc *ProjectController) GetProject(c *fiber.Ctx) error {
	project, role, ok := requireProjectRole(c, pc.DB)
	if !ok {
		return nil
	}

	if err := pc.DB.Preload("Collaborators.User").First(project, project.ID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load project")
	}

	return c.JSON(fiber.Map{
		"project": project,
		"role":    role.String(),
	})
}

func (pc *ProjectController) UpdateProject(c *fiber.Ctx) error {
	project, role, ok := requireProjectRole(c, pc.DB)
	if !ok {
		return nil
	}

	var req UpdateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}

	// Content edits need editor; visibility and the all-users floor are
	// access-control fields and stay owner-only.
	if len(updates) > 0 && !utils.CanPerform(role, utils.OpEditProject) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Editor access required")
	}

	if req.Visibility != nil || req.AllUsersAccess != nil {
		if !utils.CanPerform(role, utils.OpManageAccess) {
			return utils.ErrorResponse(c, fiber.StatusForbidden, "Only the owner can change project access")
		}
		if req.Visibility != nil {
			updates["visibility"] = *req.Visibility
		}
		if req.AllUsersAccess != nil {
			updates["all_users_access"] = *req.AllUsersAccess
		}
	}

	if len(updates) == 0 {
		return c.JSON(project)
	}

	if err := pc.DB.Model(project).Updates(updates).Error; err != nil {
		pc.Logger.Printf("Failed to update project %d: %v", project.ID, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update project")
	}

	return c.JSON(project)
}

func (pc *ProjectController) DeleteProject(c *fiber.Ctx) error {
	project, role, ok := requireProjectRole(c, pc.DB)
	if !ok {
		return nil
	}

	if !utils.CanPerform(role, utils.OpDeleteProject) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Only the owner can delete a project")
	}

	if err := pc.DB.Delete(project).Error; err != nil {
		pc.Logger.Printf("Failed to delete project %d: %v", project.ID, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete project")
	}

	utils.LogEvent("project_deleted", map[string]interface{}{
		"project_id": project.ID,
		"owner_id":   project.OwnerID,
	})

	return c.SendStatus(fiber.StatusNoContent)
}
