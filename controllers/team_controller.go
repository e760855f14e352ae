package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"crewlog/models"
	"crewlog/utils"
)

// TeamController manages teams and their membership. Team access follows the
// same hiding policy as projects: non-members get a 404, insufficiently
// privileged members get a 403.
type TeamController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewTeamController(db *gorm.DB, logger *log.Logger) *TeamController {
	return &TeamController{DB: db, Logger: logger}
}

type CreateTeamRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"omitempty,max=2000"`
}

type UpdateTeamMemberRequest struct {
	Role string `json:"role" validate:"required,oneof=admin member viewer"`
}

// requireTeamRole loads the team from :id and the caller's membership role.
// Writes the error response itself on absence; non-members see 404.
func requireTeamRole(c *fiber.Ctx, db *gorm.DB) (*models.Team, string, bool) {
	user := c.Locals("user").(*models.User)

	var team models.Team
	if err := db.First(&team, utils.ParseUint(c.Params("id"))).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.ErrorResponse(c, fiber.StatusNotFound, "Team not found")
		} else {
			utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load team")
		}
		return nil, "", false
	}

	var member models.TeamMember
	if err := db.Where("team_id = ? AND user_id = ?", team.ID, user.ID).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.ErrorResponse(c, fiber.StatusNotFound, "Team not found")
		} else {
			utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check membership")
		}
		return nil, "", false
	}

	return &team, member.Role, true
}

func (tc *TeamController) CreateTeam(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req CreateTeamRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	team := models.Team{
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   user.ID,
	}

	err := tc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&team).Error; err != nil {
			return err
		}
		// The creator starts as the team's admin
		return tx.Create(&models.TeamMember{
			TeamID: team.ID,
			UserID: user.ID,
			Role:   models.TeamRoleAdmin,
		}).Error
	})
	if err != nil {
		tc.Logger.Printf("Failed to create team: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create team")
	}

	return c.Status(fiber.StatusCreated).JSON(team)
}

func (tc *TeamController) GetTeams(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var teams []models.Team
	err := tc.DB.
		Where("id IN (SELECT team_id FROM team_members WHERE user_id = ? AND deleted_at IS NULL)", user.ID).
		Find(&teams).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list teams")
	}

	return c.JSON(teams)
}

func (tc *TeamController) GetTeam(c *fiber.Ctx) error {
	team, role, ok := requireTeamRole(c, tc.DB)
	if !ok {
		return nil
	}

	if err := tc.DB.Preload("Members.User").First(team, team.ID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load team")
	}

	return c.JSON(fiber.Map{
		"team": team,
		"role": role,
	})
}

func (tc *TeamController) UpdateTeam(c *fiber.Ctx) error {
	team, role, ok := requireTeamRole(c, tc.DB)
	if !ok {
		return nil
	}

	if role != models.TeamRoleAdmin {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Team admin access required")
	}

	var req CreateTeamRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	updates := map[string]interface{}{
		"name":        req.Name,
		"description": req.Description,
	}
	if err := tc.DB.Model(team).Updates(updates).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update team")
	}

	return c.JSON(team)
}

func (tc *TeamController) DeleteTeam(c *fiber.Ctx) error {
	team, role, ok := requireTeamRole(c, tc.DB)
	if !ok {
		return nil
	}

	if role != models.TeamRoleAdmin {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Team admin access required")
	}

	if err := tc.DB.Delete(team).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete team")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (tc *TeamController) UpdateMemberRole(c *fiber.Ctx) error {
	team, role, ok := requireTeamRole(c, tc.DB)
	if !ok {
		return nil
	}

	if role != models.TeamRoleAdmin {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Team admin access required")
	}

	var req UpdateTeamMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	userID := utils.ParseUint(c.Params("userId"))

	res := tc.DB.Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ?", team.ID, userID).
		Update("role", req.Role)
	if res.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update member")
	}
	if res.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Member not found")
	}

	return c.JSON(fiber.Map{
		"message": "Member role updated",
	})
}

// RemoveMember removes a membership. Admins may remove anyone; any member
// may leave on their own.
func (tc *TeamController) RemoveMember(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	team, role, ok := requireTeamRole(c, tc.DB)
	if !ok {
		return nil
	}

	userID := utils.ParseUint(c.Params("userId"))
	selfRemoval := userID == user.ID

	if !selfRemoval && role != models.TeamRoleAdmin {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Team admin access required")
	}

	res := tc.DB.Where("team_id = ? AND user_id = ?", team.ID, userID).
		Delete(&models.TeamMember{})
	if res.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to remove member")
	}
	if res.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Member not found")
	}

	return c.SendStatus(fiber.StatusNoContent)
}
