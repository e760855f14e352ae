package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"crewlog/models"
	"crewlog/utils"
)

// UpdateController serves the project feed: updates, their comments and
// emoji reactions. Posting requires editor access on the project; viewers
// read. Authors edit and delete their own entries, the project owner may
// delete anything.
type UpdateController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewUpdateController(db *gorm.DB, logger *log.Logger) *UpdateController {
	return &UpdateController{DB: db, Logger: logger}
}

type CreateUpdateRequest struct {
	Kind string `json:"kind" validate:"required,oneof=progress blocker milestone"`
	Body string `json:"body" validate:"required,max=10000"`
}

type EditUpdateRequest struct {
	Body string `json:"body" validate:"required,max=10000"`
}

type CreateCommentRequest struct {
	Body string `json:"body" validate:"required,max=5000"`
}

type ReactionRequest struct {
	Emoji string `json:"emoji" validate:"required,max=32"`
}

// loadUpdate fetches the :updateId entry scoped to the project already
// resolved by requireProjectRole, so a valid id from another project 404s.
func (uc *UpdateController) loadUpdate(c *fiber.Ctx, projectID uint) (*models.Update, bool) {
	var update models.Update
	err := uc.DB.Where("project_id = ?", projectID).
		First(&update, utils.ParseUint(c.Params("updateId"))).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.ErrorResponse(c, fiber.StatusNotFound, "Update not found")
		} else {
			utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load update")
		}
		return nil, false
	}
	return &update, true
}

func (uc *UpdateController) CreateUpdate(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	project, role, ok := requireProjectRole(c, uc.DB)
	if !ok {
		return nil
	}

	if !utils.CanPerform(role, utils.OpPostUpdate) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Editor access required to post updates")
	}

	var req CreateUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	update := models.Update{
		ProjectID: project.ID,
		AuthorID:  user.ID,
		Kind:      req.Kind,
		Body:      req.Body,
	}
	if err := uc.DB.Create(&update).Error; err != nil {
		uc.Logger.Printf("Failed to create update on project %d: %v", project.ID, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create update")
	}

	return c.Status(fiber.StatusCreated).JSON(update)
}

func (uc *UpdateController) ListUpdates(c *fiber.Ctx) error {
	project, _, ok := requireProjectRole(c, uc.DB)
	if !ok {
		return nil
	}

	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	query := uc.DB.Model(&models.Update{}).Where("project_id = ?", project.ID)
	if kind := c.Query("kind"); kind != "" {
		if !models.ValidUpdateKind(kind) {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown update kind")
		}
		query = query.Where("kind = ?", kind)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count updates")
	}

	var updates []models.Update
	err := query.Preload("Author").Preload("Reactions").
		Order("created_at DESC").
		Limit(limit).Offset((page - 1) * limit).
		Find(&updates).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list updates")
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  updates,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

func (uc *UpdateController) GetUpdate(c *fiber.Ctx) error {
	project, _, ok := requireProjectRole(c, uc.DB)
	if !ok {
		return nil
	}

	var update models.Update
	err := uc.DB.Preload("Author").Preload("Comments.Author").Preload("Reactions").
		Where("project_id = ?", project.ID).
		First(&update, utils.ParseUint(c.Params("updateId"))).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Update not found")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load update")
	}

	return c.JSON(update)
}

// EditUpdate changes the body of an entry. Only its author may edit; the
// kind is fixed at creation.
func (uc *UpdateController) EditUpdate(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	project, _, ok := requireProjectRole(c, uc.DB)
	if !ok {
		return nil
	}

	update, ok := uc.loadUpdate(c, project.ID)
	if !ok {
		return nil
	}

	if update.AuthorID != user.ID {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Only the author can edit an update")
	}

	var req EditUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	if err := uc.DB.Model(update).Update("body", req.Body).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to edit update")
	}

	return c.JSON(update)
}

func (uc *UpdateController) DeleteUpdate(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	project, role, ok := requireProjectRole(c, uc.DB)
	if !ok {
		return nil
	}

	update, ok := uc.loadUpdate(c, project.ID)
	if !ok {
		return nil
	}

	if update.AuthorID != user.ID && !utils.CanPerform(role, utils.OpManageCollaborators) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Only the author or the project owner can delete an update")
	}

	if err := uc.DB.Delete(update).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete update")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (uc *UpdateController) CreateComment(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	project, role, ok := requireProjectRole(c, uc.DB)
	if !ok {
		return nil
	}

	if !utils.CanPerform(role, utils.OpPostUpdate) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Editor access required to comment")
	}

	update, ok := uc.loadUpdate(c, project.ID)
	if !ok {
		return nil
	}

	var req CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	comment := models.Comment{
		UpdateID: update.ID,
		AuthorID: user.ID,
		Body:     req.Body,
	}
	if err := uc.DB.Create(&comment).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create comment")
	}

	return c.Status(fiber.StatusCreated).JSON(comment)
}

func (uc *UpdateController) ListComments(c *fiber.Ctx) error {
	project, _, ok := requireProjectRole(c, uc.DB)
	if !ok {
		return nil
	}

	update, ok := uc.loadUpdate(c, project.ID)
	if !ok {
		return nil
	}

	var comments []models.Comment
	err := uc.DB.Preload("Author").
		Where("update_id = ?", update.ID).
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list comments")
	}

	return c.JSON(comments)
}

func (uc *UpdateController) DeleteComment(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	project, role, ok := requireProjectRole(c, uc.DB)
	if !ok {
		return nil
	}

	update, ok := uc.loadUpdate(c, project.ID)
	if !ok {
		return nil
	}

	var comment models.Comment
	err := uc.DB.Where("update_id = ?", update.ID).
		First(&comment, utils.ParseUint(c.Params("commentId"))).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Comment not found")
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load comment")
	}

	if comment.AuthorID != user.ID && !utils.CanPerform(role, utils.OpManageCollaborators) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Only the author or the project owner can delete a comment")
	}

	if err := uc.DB.Delete(&comment).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete comment")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// AddReaction is an idempotent PUT: reacting twice with the same emoji is a
// no-op thanks to the (update, user, emoji) unique index.
func (uc *UpdateController) AddReaction(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	project, role, ok := requireProjectRole(c, uc.DB)
	if !ok {
		return nil
	}

	if !utils.CanPerform(role, utils.OpPostUpdate) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Editor access required to react")
	}

	update, ok := uc.loadUpdate(c, project.ID)
	if !ok {
		return nil
	}

	var req ReactionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	reaction := models.Reaction{
		UpdateID: update.ID,
		UserID:   user.ID,
		Emoji:    req.Emoji,
	}
	if err := uc.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&reaction).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to add reaction")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (uc *UpdateController) RemoveReaction(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	project, _, ok := requireProjectRole(c, uc.DB)
	if !ok {
		return nil
	}

	update, ok := uc.loadUpdate(c, project.ID)
	if !ok {
		return nil
	}

	var req ReactionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	res := uc.DB.Where("update_id = ? AND user_id = ? AND emoji = ?", update.ID, user.ID, req.Emoji).
		Delete(&models.Reaction{})
	if res.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to remove reaction")
	}
	if res.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Reaction not found")
	}

	return c.SendStatus(fiber.StatusNoContent)
}
