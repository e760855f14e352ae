package controller

import (
	"errors"
	"fmt"
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

// ProjectInviteController owns the project-invite lifecycle:
// pending -> accepted | declined | expired. Expiry is detected lazily
// whenever an invite is read or acted on; every transition is a conditional
// update on status so concurrent accepts cannot both win.
type ProjectInviteController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewProjectInviteController(db *gorm.DB, logger *log.Logger) *ProjectInviteController {
	return &ProjectInviteController{DB: db, Logger: logger}
}

type CreateInviteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=editor viewer"`
}

// errInviteNotPending aborts an accept transaction whose status CAS lost the
// race, rolling the just-inserted grant back with it.
var errInviteNotPending = errors.New("invite is no longer pending")

// inviteStatusMessage phrases the conflict so the client can show why the
// invite is no longer actionable.
func inviteStatusMessage(status string) string {
	switch status {
	case models.InviteStatusAccepted:
		return "Invite has already been accepted"
	case models.InviteStatusDeclined:
		return "Invite has already been declined"
	case models.InviteStatusExpired:
		return "Invite has expired"
	case models.InviteStatusRevoked:
		return "Invite has been revoked"
	default:
		return fmt.Sprintf("Invite is %s", status)
	}
}

// CreateInvite issues a pending invite for an email address. If the address
// has no account yet, one is provisioned with a random password that is
// surfaced exactly once in the response.
func (ic *ProjectInviteController) CreateInvite(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	// Malformed requests are rejected before any project lookup, so the 400
	// envelope is the same whether or not the project exists.
	var req CreateInviteRequest
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

	project, role, ok := requireProjectRole(c, ic.DB)
	if !ok {
		return nil
	}

	if !utils.CanPerform(role, utils.OpInviteCollaborator) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Editor access required to invite collaborators")
	}

	if project.TeamID != nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Team projects invite members through the team")
	}

	// The owner already holds the super-role and never appears in the
	// collaborator list.
	var owner models.User
	if err := ic.DB.First(&owner, project.OwnerID).Error; err == nil {
		if models.NormalizeInviteEmail(owner.Email) == email {
			return utils.ErrorResponse(c, fiber.StatusConflict, "That email belongs to the project owner")
		}
	}

	// Existing account that is already a collaborator?
	var invitee models.User
	inviteeErr := ic.DB.Where("email = ?", email).First(&invitee).Error
	if inviteeErr == nil {
		var existing models.ProjectCollaborator
		err := ic.DB.Where("project_id = ? AND user_id = ?", project.ID, invitee.ID).First(&existing).Error
		if err == nil {
			return utils.ErrorResponse(c, fiber.StatusConflict, "User is already a collaborator")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check collaborators")
		}
	} else if !errors.Is(inviteeErr, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to look up user")
	}

	// One pending invite per (email, project). The partial unique index is
	// the real guard; this lookup just produces the friendlier error.
	var pending models.ProjectInvite
	err := ic.DB.Where("project_id = ? AND email = ? AND status = ?",
		project.ID, email, models.InviteStatusPending).First(&pending).Error
	if err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "A pending invite already exists for that email")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check pending invites")
	}

	// Auto-provision an account so the invitee can sign in straight from the
	// invite email. The generated password is returned once to the inviter
	// and stored only as a hash.
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
		if err := ic.DB.Create(&invitee).Error; err != nil {
			ic.Logger.Printf("Failed to provision account for %s: %v", email, err)
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to provision account")
		}
		if err := utils.SendWelcomeEmail(email, project.Name, generatedPassword); err != nil {
			utils.LogError("welcome_email_failed", err, map[string]interface{}{"email": email})
		}
	}

	token, err := utils.GenerateSecureToken()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate invite token")
	}

	invite := models.ProjectInvite{
		ProjectID: project.ID,
		Email:     email,
		Role:      req.Role,
		Token:     token,
		Status:    models.InviteStatusPending,
		ExpiresAt: time.Now().Add(time.Duration(config.AppConfig.InviteTTLHours) * time.Hour),
		InvitedBy: user.ID,
	}

	if err := ic.DB.Create(&invite).Error; err != nil {
		// The partial unique index closes the race the lookup above leaves open
		return utils.ErrorResponse(c, fiber.StatusConflict, "A pending invite already exists for that email")
	}

	if err := utils.SendProjectInviteEmail(email, user.DisplayName(), project.Name, req.Role, token, invite.ExpiresAt); err != nil {
		utils.LogError("invite_email_failed", err, map[string]interface{}{
			"invite_id": invite.ID,
			"email":     email,
		})
	}

	utils.LogEvent("project_invite_created", map[string]interface{}{
		"invite_id":  invite.ID,
		"project_id": project.ID,
		"invited_by": user.ID,
		"role":       req.Role,
	})

	response := fiber.Map{"invite": invite}
	if generatedPassword != "" {
		// Surfaced once; not recoverable afterwards
		response["generated_password"] = generatedPassword
	}
	return c.Status(fiber.StatusCreated).JSON(response)
}

// loadActionableInvite fetches the invite behind a token and applies the
// accept/decline preconditions shared by both transitions: the invite must
// exist, be pending, be unexpired, and belong to the caller's email. Expired
// invites are flipped lazily with a conditional update before reporting.
func (ic *ProjectInviteController) loadActionableInvite(c *fiber.Ctx) (*models.ProjectInvite, bool) {
	user := c.Locals("user").(*models.User)

	var invite models.ProjectInvite
	if err := ic.DB.Where("token = ?", c.Params("token")).First(&invite).Error; err != nil {
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
		ic.DB.Model(&models.ProjectInvite{}).
			Where("id = ? AND status = ?", invite.ID, models.InviteStatusPending).
			Update("status", models.InviteStatusExpired)
		utils.ErrorResponse(c, fiber.StatusConflict, inviteStatusMessage(models.InviteStatusExpired))
		return nil, false
	}

	// Invites bind to an email, not a user id: the account may postdate the
	// invite. Match is case-insensitive.
	if models.NormalizeInviteEmail(user.Email) != invite.Email {
		utils.ErrorResponse(c, fiber.StatusForbidden, "This invite was issued to a different email address")
		return nil, false
	}

	return &invite, true
}

func (ic *ProjectInviteController) AcceptInvite(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	invite, ok := ic.loadActionableInvite(c)
	if !ok {
		return nil
	}

	now := time.Now()

	err := ic.DB.Transaction(func(tx *gorm.DB) error {
		// Idempotent grant: if a racing accept already added the row, this
		// is a no-op rather than a duplicate.
		collaborator := models.ProjectCollaborator{
			ProjectID: invite.ProjectID,
			UserID:    user.ID,
			Role:      invite.Role,
			AddedAt:   now,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&collaborator).Error; err != nil {
			return err
		}

		// Compare-and-swap on status: only one transition ever leaves pending.
		res := tx.Model(&models.ProjectInvite{}).
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
			// A terminal transition won the race; abort so the grant above
			// rolls back with the transaction.
			return errInviteNotPending
		}
		return nil
	})
	if errors.Is(err, errInviteNotPending) {
		// Someone else moved it to a terminal state first; report which.
		var current models.ProjectInvite
		if err := ic.DB.First(&current, invite.ID).Error; err == nil {
			return utils.ErrorResponse(c, fiber.StatusConflict, inviteStatusMessage(current.Status))
		}
		return utils.ErrorResponse(c, fiber.StatusConflict, "Invite is no longer pending")
	}
	if err != nil {
		ic.Logger.Printf("Failed to accept invite %d: %v", invite.ID, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to accept invite")
	}

	utils.LogEvent("project_invite_accepted", map[string]interface{}{
		"invite_id":  invite.ID,
		"project_id": invite.ProjectID,
		"user_id":    user.ID,
	})

	return c.JSON(fiber.Map{
		"message":    "Invite accepted",
		"project_id": invite.ProjectID,
		"role":       invite.Role,
	})
}

func (ic *ProjectInviteController) DeclineInvite(c *fiber.Ctx) error {
	invite, ok := ic.loadActionableInvite(c)
	if !ok {
		return nil
	}

	res := ic.DB.Model(&models.ProjectInvite{}).
		Where("id = ? AND status = ?", invite.ID, models.InviteStatusPending).
		Update("status", models.InviteStatusDeclined)
	if res.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to decline invite")
	}
	if res.RowsAffected == 0 {
		var current models.ProjectInvite
		if err := ic.DB.First(&current, invite.ID).Error; err == nil {
			return utils.ErrorResponse(c, fiber.StatusConflict, inviteStatusMessage(current.Status))
		}
		return utils.ErrorResponse(c, fiber.StatusConflict, "Invite is no longer pending")
	}

	return c.JSON(fiber.Map{
		"message": "Invite declined",
	})
}

// The token is hidden everywhere except here: the invitee listing is the one
// place the caller is entitled to it, since accept and decline are keyed by it.
type myProjectInvite struct {
	models.ProjectInvite
	Token string `json:"token"`
}

type myTeamInvite struct {
	models.TeamInvite
	Token string `json:"token"`
}

// ListMyInvites returns the caller's pending invites, flipping any that have
// quietly expired since they were written.
func (ic *ProjectInviteController) ListMyInvites(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	email := models.NormalizeInviteEmail(user.Email)
	now := time.Now()

	// Lazy expiry on read
	ic.DB.Model(&models.ProjectInvite{}).
		Where("email = ? AND status = ? AND expires_at < ?", email, models.InviteStatusPending, now).
		Update("status", models.InviteStatusExpired)
	ic.DB.Model(&models.TeamInvite{}).
		Where("email = ? AND status = ? AND expires_at < ?", email, models.InviteStatusPending, now).
		Update("status", models.InviteStatusExpired)

	var projectInvites []models.ProjectInvite
	if err := ic.DB.Preload("Project").
		Where("email = ? AND status = ?", email, models.InviteStatusPending).
		Find(&projectInvites).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list invites")
	}

	var teamInvites []models.TeamInvite
	if err := ic.DB.Preload("Team").
		Where("email = ? AND status = ?", email, models.InviteStatusPending).
		Find(&teamInvites).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list invites")
	}

	mineProjects := make([]myProjectInvite, 0, len(projectInvites))
	for _, invite := range projectInvites {
		mineProjects = append(mineProjects, myProjectInvite{ProjectInvite: invite, Token: invite.Token})
	}
	mineTeams := make([]myTeamInvite, 0, len(teamInvites))
	for _, invite := range teamInvites {
		mineTeams = append(mineTeams, myTeamInvite{TeamInvite: invite, Token: invite.Token})
	}

	return c.JSON(fiber.Map{
		"project_invites": mineProjects,
		"team_invites":    mineTeams,
	})
}
