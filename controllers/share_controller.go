package controller

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"crewlog/models"
	"crewlog/utils"
)

// ShareController runs the public share gate: a revocable, rotatable secret
// that grants anonymous read-only access to an allow-listed view of a
// project and its feed. Disabling keeps the token on the row but makes it
// resolve exactly like an unknown token.
type ShareController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewShareController(db *gorm.DB, logger *log.Logger) *ShareController {
	return &ShareController{DB: db, Logger: logger}
}

// EnableShare turns the public link on, minting a token only if the project
// never had one; re-enabling after a disable reuses the stored token.
func (sc *ShareController) EnableShare(c *fiber.Ctx) error {
	project, role, ok := requireProjectRole(c, sc.DB)
	if !ok {
		return nil
	}

	if !utils.CanPerform(role, utils.OpManageShare) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Editor access required to manage sharing")
	}

	updates := map[string]interface{}{"public_share_enabled": true}
	if project.PublicShareToken == nil {
		token, err := utils.GenerateSecureToken()
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate share token")
		}
		updates["public_share_token"] = token
		project.PublicShareToken = &token
	}

	if err := sc.DB.Model(project).Updates(updates).Error; err != nil {
		sc.Logger.Printf("Failed to enable sharing for project %d: %v", project.ID, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to enable sharing")
	}

	utils.LogEvent("public_share_enabled", map[string]interface{}{
		"project_id": project.ID,
	})

	return c.JSON(fiber.Map{
		"share_token": *project.PublicShareToken,
		"enabled":     true,
	})
}

func (sc *ShareController) DisableShare(c *fiber.Ctx) error {
	project, role, ok := requireProjectRole(c, sc.DB)
	if !ok {
		return nil
	}

	if !utils.CanPerform(role, utils.OpManageShare) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Editor access required to manage sharing")
	}

	// Token stays on the row but is inert until re-enabled or regenerated
	if err := sc.DB.Model(project).Update("public_share_enabled", false).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to disable sharing")
	}

	utils.LogEvent("public_share_disabled", map[string]interface{}{
		"project_id": project.ID,
	})

	return c.JSON(fiber.Map{
		"enabled": false,
	})
}

// RegenerateShare always mints a fresh token and re-enables sharing; every
// previously distributed link dies at once.
func (sc *ShareController) RegenerateShare(c *fiber.Ctx) error {
	project, role, ok := requireProjectRole(c, sc.DB)
	if !ok {
		return nil
	}

	if !utils.CanPerform(role, utils.OpManageShare) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Editor access required to manage sharing")
	}

	token, err := utils.GenerateSecureToken()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate share token")
	}

	updates := map[string]interface{}{
		"public_share_token":   token,
		"public_share_enabled": true,
	}
	if err := sc.DB.Model(project).Updates(updates).Error; err != nil {
		sc.Logger.Printf("Failed to regenerate share token for project %d: %v", project.ID, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to regenerate share token")
	}

	utils.LogEvent("public_share_regenerated", map[string]interface{}{
		"project_id": project.ID,
	})

	return c.JSON(fiber.Map{
		"share_token": token,
		"enabled":     true,
	})
}

// resolveByToken returns the project behind an enabled share token. Disabled
// tokens resolve like unknown ones on purpose.
func (sc *ShareController) resolveByToken(token string) (*models.Project, error) {
	var project models.Project
	err := sc.DB.Where("public_share_token = ? AND public_share_enabled = ?", token, true).
		First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// GetPublicProject serves the anonymous share view. No auth middleware runs
// on this route.
func (sc *ShareController) GetPublicProject(c *fiber.Ctx) error {
	project, err := sc.resolveByToken(c.Params("token"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Shared project not found")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load shared project")
	}

	return c.JSON(project.PublicView())
}

// publicUpdateView is the allow-listed feed projection: body, kind, time and
// the author's display name. No user ids, no emails.
type publicUpdateView struct {
	Kind       string    `json:"kind"`
	Body       string    `json:"body"`
	AuthorName string    `json:"author_name"`
	CreatedAt  time.Time `json:"created_at"`
}

func (sc *ShareController) GetPublicFeed(c *fiber.Ctx) error {
	project, err := sc.resolveByToken(c.Params("token"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Shared project not found")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load shared project")
	}

	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 100 {
		limit = 50
	}
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	var updates []models.Update
	err = sc.DB.Preload("Author").
		Where("project_id = ?", project.ID).
		Order("created_at DESC").
		Limit(limit).Offset((page - 1) * limit).
		Find(&updates).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load feed")
	}

	feed := make([]publicUpdateView, 0, len(updates))
	for _, u := range updates {
		feed = append(feed, publicUpdateView{
			Kind:       u.Kind,
			Body:       u.Body,
			AuthorName: u.Author.DisplayName(),
			CreatedAt:  u.CreatedAt,
		})
	}

	return c.JSON(feed)
}
