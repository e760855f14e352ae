package controller

import (
	"fmt"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"crewlog/models"
)

func setupTeam(t *testing.T, db *gorm.DB, admin *models.User) *models.Team {
	t.Helper()
	team := &models.Team{Name: "platform", CreatedBy: admin.ID}
	require.NoError(t, db.Create(team).Error)
	require.NoError(t, db.Create(&models.TeamMember{
		TeamID: team.ID, UserID: admin.ID, Role: models.TeamRoleAdmin,
	}).Error)
	return team
}

func pendingTeamInvite(t *testing.T, db *gorm.DB, teamID uint) *models.TeamInvite {
	t.Helper()
	var invite models.TeamInvite
	require.NoError(t, db.Where("team_id = ? AND status = ?",
		teamID, models.InviteStatusPending).First(&invite).Error)
	return &invite
}

func TestTeamInviteAccept(t *testing.T) {
	db := setupTestDB(t)
	app := newTestApp(t, db)

	admin := createTestUser(t, db, "admin@example.com")
	invitee := createTestUser(t, db, "invitee@example.com")
	team := setupTeam(t, db, admin)

	resp := doRequest(t, app, "POST", "/api/v1/teams/1/invites", admin, fiber.Map{
		"email": "invitee@example.com",
		"role":  "member",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	invite := pendingTeamInvite(t, db, team.ID)

	resp = doRequest(t, app, "POST", "/api/v1/invites/team/"+invite.Token+"/accept", invitee, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var member models.TeamMember
	require.NoError(t, db.Where("team_id = ? AND user_id = ?", team.ID, invitee.ID).
		First(&member).Error)
	assert.Equal(t, models.TeamRoleMember, member.Role)
}

// A revoke racing the accept must win cleanly: no membership row survives the
// rolled-back accept.
func TestTeamAcceptRacingRevokeGrantsNothing(t *testing.T) {
	db := setupTestDB(t)
	app := newTestApp(t, db)

	admin := createTestUser(t, db, "admin@example.com")
	invitee := createTestUser(t, db, "invitee@example.com")
	team := setupTeam(t, db, admin)

	invite := models.TeamInvite{
		TeamID:    team.ID,
		Email:     "invitee@example.com",
		Role:      models.TeamRoleMember,
		Token:     "contested-team-token",
		Status:    models.InviteStatusPending,
		ExpiresAt: time.Now().Add(time.Hour),
		InvitedBy: admin.ID,
	}
	require.NoError(t, db.Create(&invite).Error)

	revoked := false
	db.Callback().Create().Before("gorm:create").Register("test_concurrent_revoke", func(tx *gorm.DB) {
		if revoked || tx.Statement.Schema == nil || tx.Statement.Schema.Table != "team_members" {
			return
		}
		revoked = true
		require.NoError(t, db.Model(&models.TeamInvite{}).
			Where("id = ? AND status = ?", invite.ID, models.InviteStatusPending).
			Update("status", models.InviteStatusRevoked).Error)
	})
	t.Cleanup(func() {
		db.Callback().Create().Remove("test_concurrent_revoke")
	})

	resp := doRequest(t, app, "POST", "/api/v1/invites/team/contested-team-token/accept", invitee, nil)
	require.True(t, revoked, "the competing revoke must have run")
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Invite has been revoked", body["message"])

	var count int64
	db.Model(&models.TeamMember{}).
		Where("team_id = ? AND user_id = ?", team.ID, invitee.ID).Count(&count)
	assert.Zero(t, count)
}

func TestTeamInviteAdminOnly(t *testing.T) {
	db := setupTestDB(t)
	app := newTestApp(t, db)

	admin := createTestUser(t, db, "admin@example.com")
	member := createTestUser(t, db, "member@example.com")
	team := setupTeam(t, db, admin)
	require.NoError(t, db.Create(&models.TeamMember{
		TeamID: team.ID, UserID: member.ID, Role: models.TeamRoleMember,
	}).Error)

	resp := doRequest(t, app, "POST", "/api/v1/teams/1/invites", member, fiber.Map{
		"email": "someone@example.com",
		"role":  "member",
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestTeamInviteRevoke(t *testing.T) {
	db := setupTestDB(t)
	app := newTestApp(t, db)

	admin := createTestUser(t, db, "admin@example.com")
	invitee := createTestUser(t, db, "invitee@example.com")
	team := setupTeam(t, db, admin)

	resp := doRequest(t, app, "POST", "/api/v1/teams/1/invites", admin, fiber.Map{
		"email": "invitee@example.com",
		"role":  "member",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	invite := pendingTeamInvite(t, db, team.ID)

	resp = doRequest(t, app, "POST",
		fmt.Sprintf("/api/v1/teams/1/invites/%d/revoke", invite.ID), admin, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// A revoked invite is terminal: the link is dead for the invitee
	resp = doRequest(t, app, "POST", "/api/v1/invites/team/"+invite.Token+"/accept", invitee, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Invite has been revoked", body["message"])

	// Revoking twice conflicts too
	resp = doRequest(t, app, "POST",
		fmt.Sprintf("/api/v1/teams/1/invites/%d/revoke", invite.ID), admin, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestTeamInviteRevokeHiddenFromNonAdmins(t *testing.T) {
	db := setupTestDB(t)
	app := newTestApp(t, db)

	admin := createTestUser(t, db, "admin@example.com")
	member := createTestUser(t, db, "member@example.com")
	team := setupTeam(t, db, admin)
	require.NoError(t, db.Create(&models.TeamMember{
		TeamID: team.ID, UserID: member.ID, Role: models.TeamRoleMember,
	}).Error)

	resp := doRequest(t, app, "POST", "/api/v1/teams/1/invites", admin, fiber.Map{
		"email": "invitee@example.com",
		"role":  "member",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	invite := pendingTeamInvite(t, db, team.ID)

	// Non-admins cannot even confirm the invite exists
	resp = doRequest(t, app, "POST",
		fmt.Sprintf("/api/v1/teams/1/invites/%d/revoke", invite.ID), member, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestTeamInviteResendRotatesToken(t *testing.T) {
	db := setupTestDB(t)
	app := newTestApp(t, db)

	admin := createTestUser(t, db, "admin@example.com")
	invitee := createTestUser(t, db, "invitee@example.com")
	team := setupTeam(t, db, admin)

	resp := doRequest(t, app, "POST", "/api/v1/teams/1/invites", admin, fiber.Map{
		"email": "invitee@example.com",
		"role":  "member",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	invite := pendingTeamInvite(t, db, team.ID)
	oldToken := invite.Token
	oldExpiry := invite.ExpiresAt

	time.Sleep(10 * time.Millisecond)
	resp = doRequest(t, app, "POST",
		fmt.Sprintf("/api/v1/teams/1/invites/%d/resend", invite.ID), admin, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var rotated models.TeamInvite
	require.NoError(t, db.First(&rotated, invite.ID).Error)
	assert.NotEqual(t, oldToken, rotated.Token)
	assert.True(t, rotated.ExpiresAt.After(oldExpiry))
	assert.Equal(t, models.InviteStatusPending, rotated.Status, "resend keeps the invite pending")

	// The old link stops resolving the moment the rotation lands
	resp = doRequest(t, app, "POST", "/api/v1/invites/team/"+oldToken+"/accept", invitee, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, app, "POST", "/api/v1/invites/team/"+rotated.Token+"/accept", invitee, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
