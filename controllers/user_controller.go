package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"crewlog/models"
	"crewlog/utils"
)

// UserController covers the admin-only global access floor. A user's
// global_project_access grants a minimum role on every project in the
// workspace; per-project grants can only raise it.
type UserController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewUserController(db *gorm.DB, logger *log.Logger) *UserController {
	return &UserController{DB: db, Logger: logger}
}

type SetGlobalAccessRequest struct {
	AccessLevel string `json:"access_level" validate:"required,oneof=none view edit"`
}

func (uc *UserController) SetGlobalAccess(c *fiber.Ctx) error {
	var req SetGlobalAccessRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	var target models.User
	if err := uc.DB.First(&target, utils.ParseUint(c.Params("id"))).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "User not found")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load user")
	}

	if err := uc.DB.Model(&target).Update("global_project_access", req.AccessLevel).Error; err != nil {
		uc.Logger.Printf("Failed to set global access for user %d: %v", target.ID, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update access level")
	}

	admin := c.Locals("user").(*models.User)
	utils.LogEvent("global_access_changed", map[string]interface{}{
		"user_id":      target.ID,
		"access_level": req.AccessLevel,
		"changed_by":   admin.ID,
	})

	return c.JSON(fiber.Map{
		"user_id":      target.ID,
		"access_level": req.AccessLevel,
	})
}

// ListGlobalAccess returns every user holding a non-default floor, so admins
// can audit who has workspace-wide visibility.
func (uc *UserController) ListGlobalAccess(c *fiber.Ctx) error {
	var users []models.User
	err := uc.DB.
		Where("global_project_access <> ?", models.AccessNone).
		Order("email ASC").
		Find(&users).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list users")
	}

	type entry struct {
		UserID      uint   `json:"user_id"`
		Email       string `json:"email"`
		Name        string `json:"name"`
		AccessLevel string `json:"access_level"`
	}
	out := make([]entry, 0, len(users))
	for _, u := range users {
		out = append(out, entry{
			UserID:      u.ID,
			Email:       u.Email,
			Name:        u.DisplayName(),
			AccessLevel: u.GlobalProjectAccess,
		})
	}

	return c.JSON(out)
}
