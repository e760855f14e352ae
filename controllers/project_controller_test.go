package controller

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewlog/models"
)

// Strangers and insufficient roles must be told apart: no role hides the
// project entirely, a held-but-too-low role admits it exists.
func TestProjectHidingPolicy(t *testing.T) {
	db := setupTestDB(t)
	app := newTestApp(t, db)

	owner := createTestUser(t, db, "owner@example.com")
	viewer := createTestUser(t, db, "viewer@example.com")
	outsider := createTestUser(t, db, "outsider@example.com")
	project := createTestProject(t, db, owner)

	require.NoError(t, db.Create(&models.ProjectCollaborator{
		ProjectID: project.ID, UserID: viewer.ID, Role: models.CollaboratorRoleViewer,
	}).Error)

	resp := doRequest(t, app, "GET", "/api/v1/projects/1", outsider, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, app, "GET", "/api/v1/projects/1", viewer, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// The viewer knows the project exists, so denial is a 403 here
	resp = doRequest(t, app, "DELETE", "/api/v1/projects/1", viewer, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, app, "DELETE", "/api/v1/projects/1", outsider, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGetProjectReportsRole(t *testing.T) {
	db := setupTestDB(t)
	app := newTestApp(t, db)

	owner := createTestUser(t, db, "owner@example.com")
	createTestProject(t, db, owner)

	resp := doRequest(t, app, "GET", "/api/v1/projects/1", owner, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "owner", body["role"])
}

func TestUpdateProjectAccessFieldsOwnerOnly(t *testing.T) {
	db := setupTestDB(t)
	app := newTestApp(t, db)

	owner := createTestUser(t, db, "owner@example.com")
	editor := createTestUser(t, db, "editor@example.com")
	project := createTestProject(t, db, owner)

	require.NoError(t, db.Create(&models.ProjectCollaborator{
		ProjectID: project.ID, UserID: editor.ID, Role: models.CollaboratorRoleEditor,
	}).Error)

	// Editors may rename
	resp := doRequest(t, app, "PUT", "/api/v1/projects/1", editor, fiber.Map{
		"name": "renamed",
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// But not widen access
	resp = doRequest(t, app, "PUT", "/api/v1/projects/1", editor, fiber.Map{
		"all_users_access": "edit",
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, app, "PUT", "/api/v1/projects/1", editor, fiber.Map{
		"visibility": "public",
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// PATCH and PUT share the handler; partial payloads work on either
	resp = doRequest(t, app, "PATCH", "/api/v1/projects/1", owner, fiber.Map{
		"visibility":       "public",
		"all_users_access": "view",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var reloaded models.Project
	require.NoError(t, db.First(&reloaded, project.ID).Error)
	assert.Equal(t, models.VisibilityPublic, reloaded.Visibility)
	assert.Equal(t, models.AccessView, reloaded.AllUsersAccess)
}

func TestGetProjectsScoping(t *testing.T) {
	db := setupTestDB(t)
	app := newTestApp(t, db)

	owner := createTestUser(t, db, "owner@example.com")
	other := createTestUser(t, db, "other@example.com")
	auditor := createTestUser(t, db, "auditor@example.com")
	require.NoError(t, db.Model(auditor).Update("global_project_access", models.AccessView).Error)

	createTestProject(t, db, owner)
	createTestProject(t, db, other)

	resp := doRequest(t, app, "GET", "/api/v1/projects", owner, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var owned []models.Project
	decodeInto(t, resp, &owned)
	assert.Len(t, owned, 1)

	// A global floor sees the whole workspace
	resp = doRequest(t, app, "GET", "/api/v1/projects", auditor, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var all []models.Project
	decodeInto(t, resp, &all)
	assert.Len(t, all, 2)
}

func TestCreateTeamProjectNeedsMembership(t *testing.T) {
	db := setupTestDB(t)
	app := newTestApp(t, db)

	member := createTestUser(t, db, "member@example.com")
	lurker := createTestUser(t, db, "lurker@example.com")

	team := &models.Team{Name: "platform", CreatedBy: member.ID}
	require.NoError(t, db.Create(team).Error)
	require.NoError(t, db.Create(&models.TeamMember{
		TeamID: team.ID, UserID: member.ID, Role: models.TeamRoleMember,
	}).Error)
	require.NoError(t, db.Create(&models.TeamMember{
		TeamID: team.ID, UserID: lurker.ID, Role: models.TeamRoleViewer,
	}).Error)

	resp := doRequest(t, app, "POST", "/api/v1/projects", member, fiber.Map{
		"name":    "rollout",
		"team_id": team.ID,
	})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	// Team viewers hold read-only access and cannot create
	resp = doRequest(t, app, "POST", "/api/v1/projects", lurker, fiber.Map{
		"name":    "side project",
		"team_id": team.ID,
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
