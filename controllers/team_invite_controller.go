package controller

import (
	"errors"
	"log"
	"time"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"crewlog/config"
	"crewlog/models"
	"crewlog/utils"
)

// TeamInviteController mirrors the project-invite lifecycle for teams, with
// two extra operations project invites deliberately lack: revoke (a terminal
// state only team admins can reach) and resend (in-place token rotation).
type TeamInviteController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewTeamInviteController(db *gorm.DB, logger *log.Logger) *TeamInviteController {
	return &TeamInviteController{DB: db, Logger: logger}
}

type CreateTeamInviteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=admin member viewer"`
}

func (tic *TeamInviteController) CreateInvite(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	// Validation precedes the team lookup, mirroring the project invite flow
	var req CreateTeamInviteRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	email := models.NormalizeInviteEmail(req.Email)
	if err := checkmail.ValidateFormat(email); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid email address")
	}
	if config.AppConfig.Environment == "production" {
		if err := checkmail.ValidateHost(email); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Email domain cannot receive mail")
		}
	}

	team, role, ok := requireTeamRole(c, tic.DB)
	if !ok {
		return nil
	}

	if role != models.TeamRoleAdmin {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Team admin access required to invite members")
	}

	// Already a member?
	var invitee models.User
	inviteeErr := tic.DB.Where("email = ?", email).First(&invitee).Error
	if inviteeErr == nil {
		var existing models.TeamMember
		err := tic.DB.Where("team_id = ? AND user_id = ?", team.ID, invitee.ID).First(&existing).Error
		if err == nil {
			return utils.ErrorResponse(c, fiber.StatusConflict, "User is already a team member")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check membership")
		}
	} else if !errors.Is(inviteeErr, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to look up user")
	}

	var pending models.TeamInvite
	err := tic.DB.Where("team_id = ? AND email = ? AND status = ?",
		team.ID, email, models.InviteStatusPending).First(&pending).Error
	if err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "A pending invite already exists for that email")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check pending invites")
	}

	var generatedPassword string
	if errors.Is(inviteeErr, gorm.ErrRecordNotFound) {
		generatedPassword, err = utils.GenerateRandomPassword()
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to provision account")
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(generatedPassword), bcrypt.DefaultCost)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to provision account")
		}
		invitee = models.User{
			Email:        email,
			PasswordHash: string(hashed),
			IsActive:     true,
		}
		if err := tic.DB.Create(&invitee).Error; err != nil {
			tic.Logger.Printf("Failed to provision account for %s: %v", email, err)
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to provision account")
		}
		if err := utils.SendWelcomeEmail(email, team.Name, generatedPassword); err != nil {
			utils.LogError("welcome_email_failed", err, map[string]interface{}{"email": email})
		}
	}

	token, err := utils.GenerateSecureToken()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate invite token")
	}

	invite := models.TeamInvite{
		TeamID:    team.ID,
		Email:     email,
		Role:      req.Role,
		Token:     token,
		Status:    models.InviteStatusPending,
		ExpiresAt: time.Now().Add(time.Duration(config.AppConfig.InviteTTLHours) * time.Hour),
		InvitedBy: user.ID,
	}

	if err := tic.DB.Create(&invite).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "A pending invite already exists for that email")
	}

	if err := utils.SendTeamInviteEmail(email, user.DisplayName(), team.Name, req.Role, token, invite.ExpiresAt); err != nil {
		utils.LogError("invite_email_failed", err, map[string]interface{}{
			"invite_id": invite.ID,
			"email":     email,
		})
	}

	utils.LogEvent("team_invite_created", map[string]interface{}{
		"invite_id":  invite.ID,
		"team_id":    team.ID,
		"invited_by": user.ID,
		"role":       req.Role,
	})

	response := fiber.Map{"invite": invite}
	if generatedPassword != "" {
		response["generated_password"] = generatedPassword
	}
	return c.Status(fiber.StatusCreated).JSON(response)
}

func (tic *TeamInviteController) loadActionableInvite(c *fiber.Ctx) (*models.TeamInvite, bool) {
	user := c.Locals("user").(*models.User)

	var invite models.TeamInvite
	if err := tic.DB.Where("token = ?", c.Params("token")).First(&invite).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.ErrorResponse(c, fiber.StatusNotFound, "Invite not found")
		} else {
			utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load invite")
		}
		return nil, false
	}

	if invite.Status != models.InviteStatusPending {
		utils.ErrorResponse(c, fiber.StatusConflict, inviteStatusMessage(invite.Status))
		return nil, false
	}

	if invite.IsExpired(time.Now()) {
		tic.DB.Model(&models.TeamInvite{}).
			Where("id = ? AND status = ?", invite.ID, models.InviteStatusPending).
			Update("status", models.InviteStatusExpired)
		utils.ErrorResponse(c, fiber.StatusConflict, inviteStatusMessage(models.InviteStatusExpired))
		return nil, false
	}

	if models.NormalizeInviteEmail(user.Email) != invite.Email {
		utils.ErrorResponse(c, fiber.StatusForbidden, "This invite was issued to a different email address")
		return nil, false
	}

	return &invite, true
}

func (tic *TeamInviteController) AcceptInvite(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	invite, ok := tic.loadActionableInvite(c)
	if !ok {
		return nil
	}

	now := time.Now()

	err := tic.DB.Transaction(func(tx *gorm.DB) error {
		member := models.TeamMember{
			TeamID: invite.TeamID,
			UserID: user.ID,
			Role:   invite.Role,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error; err != nil {
			return err
		}

		res := tx.Model(&models.TeamInvite{}).
			Where("id = ? AND status = ?", invite.ID, models.InviteStatusPending).
			Updates(map[string]interface{}{
				"status":      models.InviteStatusAccepted,
				"accepted_by": user.ID,
				"accepted_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// A revoke or decline won the race; abort so the membership
			// insert rolls back with the transaction.
			return errInviteNotPending
		}
		return nil
	})
	if errors.Is(err, errInviteNotPending) {
		var current models.TeamInvite
		if err := tic.DB.First(&current, invite.ID).Error; err == nil {
			return utils.ErrorResponse(c, fiber.StatusConflict, inviteStatusMessage(current.Status))
		}
		return utils.ErrorResponse(c, fiber.StatusConflict, "Invite is no longer pending")
	}
	if err != nil {
		tic.Logger.Printf("Failed to accept team invite %d: %v", invite.ID, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to accept invite")
	}

	utils.LogEvent("team_invite_accepted", map[string]interface{}{
		"invite_id": invite.ID,
		"team_id":   invite.TeamID,
		"user_id":   user.ID,
	})

	return c.JSON(fiber.Map{
		"message": "Invite accepted",
		"team_id": invite.TeamID,
		"role":    invite.Role,
	})
}

func (tic *TeamInviteController) DeclineInvite(c *fiber.Ctx) error {
	invite, ok := tic.loadActionableInvite(c)
	if !ok {
		return nil
	}

	res := tic.DB.Model(&models.TeamInvite{}).
		Where("id = ? AND status = ?", invite.ID, models.InviteStatusPending).
		Update("status", models.InviteStatusDeclined)
	if res.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to decline invite")
	}
	if res.RowsAffected == 0 {
		var current models.TeamInvite
		if err := tic.DB.First(&current, invite.ID).Error; err == nil {
			return utils.ErrorResponse(c, fiber.StatusConflict, inviteStatusMessage(current.Status))
		}
		return utils.ErrorResponse(c, fiber.StatusConflict, "Invite is no longer pending")
	}

	return c.JSON(fiber.Map{
		"message": "Invite declined",
	})
}

// loadAdminInvite fetches an invite by numeric id and checks the caller is
// an admin of its team. Used by revoke and resend, which act on invites the
// team manages rather than invites addressed to the caller.
func (tic *TeamInviteController) loadAdminInvite(c *fiber.Ctx) (*models.TeamInvite, bool) {
	user := c.Locals("user").(*models.User)

	var invite models.TeamInvite
	err := tic.DB.Where("team_id = ?", utils.ParseUint(c.Params("id"))).
		First(&invite, utils.ParseUint(c.Params("inviteId"))).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.ErrorResponse(c, fiber.StatusNotFound, "Invite not found")
		} else {
			utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load invite")
		}
		return nil, false
	}

	var member models.TeamMember
	err = tic.DB.Where("team_id = ? AND user_id = ?", invite.TeamID, user.ID).First(&member).Error
	if err != nil || member.Role != models.TeamRoleAdmin {
		// Hide the invite from anyone who can't manage the team
		utils.ErrorResponse(c, fiber.StatusNotFound, "Invite not found")
		return nil, false
	}

	return &invite, true
}

// RevokeInvite moves a pending invite to the revoked terminal state. Only
// team invites support this; project invites run out through decline/expiry.
func (tic *TeamInviteController) RevokeInvite(c *fiber.Ctx) error {
	invite, ok := tic.loadAdminInvite(c)
	if !ok {
		return nil
	}

	res := tic.DB.Model(&models.TeamInvite{}).
		Where("id = ? AND status = ?", invite.ID, models.InviteStatusPending).
		Update("status", models.InviteStatusRevoked)
	if res.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to revoke invite")
	}
	if res.RowsAffected == 0 {
		var current models.TeamInvite
		if err := tic.DB.First(&current, invite.ID).Error; err == nil {
			return utils.ErrorResponse(c, fiber.StatusConflict, inviteStatusMessage(current.Status))
		}
		return utils.ErrorResponse(c, fiber.StatusConflict, "Invite is no longer pending")
	}

	utils.LogEvent("team_invite_revoked", map[string]interface{}{
		"invite_id": invite.ID,
		"team_id":   invite.TeamID,
	})

	return c.JSON(fiber.Map{
		"message": "Invite revoked",
	})
}

// ResendInvite rotates the token and pushes out the expiry on a pending
// invite without changing its identity. The old token stops resolving the
// moment the conditional update lands.
func (tic *TeamInviteController) ResendInvite(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	invite, ok := tic.loadAdminInvite(c)
	if !ok {
		return nil
	}

	token, err := utils.GenerateSecureToken()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate invite token")
	}
	expiresAt := time.Now().Add(time.Duration(config.AppConfig.InviteTTLHours) * time.Hour)

	res := tic.DB.Model(&models.TeamInvite{}).
		Where("id = ? AND status = ?", invite.ID, models.InviteStatusPending).
		Updates(map[string]interface{}{
			"token":            token,
			"expires_at":       expiresAt,
			"reminder_sent_at": nil,
		})
	if res.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to resend invite")
	}
	if res.RowsAffected == 0 {
		var current models.TeamInvite
		if err := tic.DB.First(&current, invite.ID).Error; err == nil {
			return utils.ErrorResponse(c, fiber.StatusConflict, inviteStatusMessage(current.Status))
		}
		return utils.ErrorResponse(c, fiber.StatusConflict, "Invite is no longer pending")
	}

	var team models.Team
	if err := tic.DB.First(&team, invite.TeamID).Error; err == nil {
		if err := utils.SendTeamInviteEmail(invite.Email, user.DisplayName(), team.Name, invite.Role, token, expiresAt); err != nil {
			utils.LogError("invite_email_failed", err, map[string]interface{}{
				"invite_id": invite.ID,
				"email":     invite.Email,
			})
		}
	}

	return c.JSON(fiber.Map{
		"message":    "Invite resent",
		"expires_at": expiresAt,
	})
}
