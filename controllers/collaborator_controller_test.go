package controller

import (
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewlog/models"
)

func TestAddCollaborator(t *testing.T) {
	db := setupTestDB(t)
	app := newTestApp(t, db)

	owner := createTestUser(t, db, "owner@example.com")
	target := createTestUser(t, db, "target@example.com")
	project := createTestProject(t, db, owner)

	resp := doRequest(t, app, "POST", "/api/v1/projects/1/collaborators", owner, fiber.Map{
		"email": "target@example.com",
		"role":  "viewer",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var collab models.ProjectCollaborator
	require.NoError(t, db.Where("project_id = ? AND user_id = ?", project.ID, target.ID).
		First(&collab).Error)
	assert.Equal(t, "viewer", collab.Role)

	// Adding the same user again is a conflict, not a duplicate row
	resp = doRequest(t, app, "POST", "/api/v1/projects/1/collaborators", owner, fiber.Map{
		"email": "target@example.com",
		"role":  "editor",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var count int64
	db.Model(&models.ProjectCollaborator{}).Where("project_id = ?", project.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestAddCollaboratorUnknownEmail(t *testing.T) {
	db := setupTestDB(t)
	app := newTestApp(t, db)

	owner := createTestUser(t, db, "owner@example.com")
	createTestProject(t, db, owner)

	// Direct add requires an account; the invite flow provisions new ones
	resp := doRequest(t, app, "POST", "/api/v1/projects/1/collaborators", owner, fiber.Map{
		"email": "nobody@example.com",
		"role":  "viewer",
	})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestUpdateCollaboratorRoleOwnerOnly(t *testing.T) {
	db := setupTestDB(t)
	app := newTestApp(t, db)

	owner := createTestUser(t, db, "owner@example.com")
	editor := createTestUser(t, db, "editor@example.com")
	viewer := createTestUser(t, db, "viewer@example.com")
	project := createTestProject(t, db, owner)

	require.NoError(t, db.Create(&models.ProjectCollaborator{
		ProjectID: project.ID, UserID: editor.ID, Role: models.CollaboratorRoleEditor,
	}).Error)
	require.NoError(t, db.Create(&models.ProjectCollaborator{
		ProjectID: project.ID, UserID: viewer.ID, Role: models.CollaboratorRoleViewer,
	}).Error)

	path := fmt.Sprintf("/api/v1/projects/1/collaborators/%d", viewer.ID)

	// Editors may invite but not reshape the collaborator list
	resp := doRequest(t, app, "PUT", path, editor, fiber.Map{"role": "editor"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, app, "PUT", path, owner, fiber.Map{"role": "editor"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var collab models.ProjectCollaborator
	require.NoError(t, db.Where("project_id = ? AND user_id = ?", project.ID, viewer.ID).
		First(&collab).Error)
	assert.Equal(t, "editor", collab.Role)
}

func TestRemoveCollaborator(t *testing.T) {
	db := setupTestDB(t)
	app := newTestApp(t, db)

	owner := createTestUser(t, db, "owner@example.com")
	editor := createTestUser(t, db, "editor@example.com")
	viewer := createTestUser(t, db, "viewer@example.com")
	project := createTestProject(t, db, owner)

	require.NoError(t, db.Create(&models.ProjectCollaborator{
		ProjectID: project.ID, UserID: editor.ID, Role: models.CollaboratorRoleEditor,
	}).Error)
	require.NoError(t, db.Create(&models.ProjectCollaborator{
		ProjectID: project.ID, UserID: viewer.ID, Role: models.CollaboratorRoleViewer,
	}).Error)

	// An editor cannot remove someone else
	resp := doRequest(t, app, "DELETE",
		fmt.Sprintf("/api/v1/projects/1/collaborators/%d", viewer.ID), editor, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// But anyone may leave on their own
	resp = doRequest(t, app, "DELETE",
		fmt.Sprintf("/api/v1/projects/1/collaborators/%d", viewer.ID), viewer, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	// And the owner may remove anyone
	resp = doRequest(t, app, "DELETE",
		fmt.Sprintf("/api/v1/projects/1/collaborators/%d", editor.ID), owner, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	var count int64
	db.Model(&models.ProjectCollaborator{}).Where("project_id = ?", project.ID).Count(&count)
	assert.Zero(t, count)
}

func TestCollaboratorEndpointsOnTeamProject(t *testing.T) {
	db := setupTestDB(t)
	app := newTestApp(t, db)

	owner := createTestUser(t, db, "owner@example.com")
	createTestUser(t, db, "target@example.com")

	team := &models.Team{Name: "platform", CreatedBy: owner.ID}
	require.NoError(t, db.Create(team).Error)
	require.NoError(t, db.Create(&models.TeamMember{
		TeamID: team.ID, UserID: owner.ID, Role: models.TeamRoleAdmin,
	}).Error)

	project := &models.Project{
		OwnerID:        owner.ID,
		Name:           "rollout",
		Visibility:     models.VisibilityPrivate,
		TeamID:         &team.ID,
		AllUsersAccess: models.AccessNone,
	}
	require.NoError(t, db.Create(project).Error)

	// Team projects manage access through the team, never via collaborators
	resp := doRequest(t, app, "POST", "/api/v1/projects/1/collaborators", owner, fiber.Map{
		"email": "target@example.com",
		"role":  "viewer",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}
