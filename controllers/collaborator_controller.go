package controller

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"crewlog/models"
	"crewlog/utils"
)

// CollaboratorController manages the explicit collaborator list of
// personally-owned projects. Editors may add collaborators; removal and role
// changes are owner-only, except that any collaborator may remove themself.
type CollaboratorController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewCollaboratorController(db *gorm.DB, logger *log.Logger) *CollaboratorController {
	return &CollaboratorController{DB: db, Logger: logger}
}

type AddCollaboratorRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=editor viewer"`
}

type UpdateCollaboratorRequest struct {
	Role string `json:"role" validate:"required,oneof=editor viewer"`
}

func (cc *CollaboratorController) ListCollaborators(c *fiber.Ctx) error {
	project, _, ok := requireProjectRole(c, cc.DB)
	if !ok {
		return nil
	}

	var collaborators []models.ProjectCollaborator
	if err := cc.DB.Preload("User").Where("project_id = ?", project.ID).Find(&collaborators).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list collaborators")
	}

	return c.JSON(collaborators)
}

// AddCollaborator directly grants an existing account a role. For addresses
// without an account, the invite flow is the right entry point.
func (cc *CollaboratorController) AddCollaborator(c *fiber.Ctx) error {
	project, role, ok := requireProjectRole(c, cc.DB)
	if !ok {
		return nil
	}

	if !utils.CanPerform(role, utils.OpInviteCollaborator) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Editor access required to add collaborators")
	}

	if project.TeamID != nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Team projects manage access through team membership")
	}

	var req AddCollaboratorRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	var target models.User
	err := cc.DB.Where("email = ?", models.NormalizeInviteEmail(req.Email)).First(&target).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "No account with that email; send an invite instead")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to look up user")
	}

	if target.ID == project.OwnerID {
		return utils.ErrorResponse(c, fiber.StatusConflict, "The owner is already on the project")
	}

	collaborator := models.ProjectCollaborator{
		ProjectID: project.ID,
		UserID:    target.ID,
		Role:      req.Role,
		AddedAt:   time.Now(),
	}

	// Atomic set-insert: a concurrent add of the same user is a no-op, not a
	// lost update or a duplicate row.
	res := cc.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&collaborator)
	if res.Error != nil {
		cc.Logger.Printf("Failed to add collaborator to project %d: %v", project.ID, res.Error)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to add collaborator")
	}
	if res.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusConflict, "User is already a collaborator")
	}

	utils.LogEvent("collaborator_added", map[string]interface{}{
		"project_id": project.ID,
		"user_id":    target.ID,
		"role":       req.Role,
	})

	return c.Status(fiber.StatusCreated).JSON(collaborator)
}

func (cc *CollaboratorController) UpdateCollaboratorRole(c *fiber.Ctx) error {
	project, role, ok := requireProjectRole(c, cc.DB)
	if !ok {
		return nil
	}

	if !utils.CanPerform(role, utils.OpManageCollaborators) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Only the owner can change collaborator roles")
	}

	var req UpdateCollaboratorRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	userID := utils.ParseUint(c.Params("userId"))

	res := cc.DB.Model(&models.ProjectCollaborator{}).
		Where("project_id = ? AND user_id = ?", project.ID, userID).
		Update("role", req.Role)
	if res.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update collaborator")
	}
	if res.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Collaborator not found")
	}

	return c.JSON(fiber.Map{
		"message": "Collaborator role updated",
	})
}

// RemoveCollaborator removes a grant. Owners may remove anyone; everyone may
// remove themself ("leave project") regardless of role.
func (cc *CollaboratorController) RemoveCollaborator(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	project, role, ok := requireProjectRole(c, cc.DB)
	if !ok {
		return nil
	}

	userID := utils.ParseUint(c.Params("userId"))
	selfRemoval := userID == user.ID

	if !selfRemoval && !utils.CanPerform(role, utils.OpManageCollaborators) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Only the owner can remove collaborators")
	}

	res := cc.DB.Where("project_id = ? AND user_id = ?", project.ID, userID).
		Delete(&models.ProjectCollaborator{})
	if res.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to remove collaborator")
	}
	if res.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Collaborator not found")
	}

	utils.LogEvent("collaborator_removed", map[string]interface{}{
		"project_id":   project.ID,
		"user_id":      userID,
		"self_removal": selfRemoval,
	})

	return c.SendStatus(fiber.StatusNoContent)
}
