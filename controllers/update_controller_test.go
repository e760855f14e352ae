package controller

import (
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewlog/models"
)

func TestFeedPostingRequiresEditor(t *testing.T) {
	db := setupTestDB(t)
	app := newTestApp(t, db)

	owner := createTestUser(t, db, "owner@example.com")
	viewer := createTestUser(t, db, "viewer@example.com")
	project := createTestProject(t, db, owner)
	require.NoError(t, db.Create(&models.ProjectCollaborator{
		ProjectID: project.ID, UserID: viewer.ID, Role: models.CollaboratorRoleViewer,
	}).Error)

	resp := doRequest(t, app, "POST", "/api/v1/projects/1/updates", viewer, fiber.Map{
		"kind": "progress",
		"body": "trying to sneak one in",
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, app, "POST", "/api/v1/projects/1/updates", owner, fiber.Map{
		"kind": "blocker",
		"body": "migration is stuck on the index rebuild",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	// Viewers still read the feed
	resp = doRequest(t, app, "GET", "/api/v1/projects/1/updates", viewer, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.EqualValues(t, 1, body["total"])
}

func TestListUpdatesKindFilter(t *testing.T) {
	db := setupTestDB(t)
	app := newTestApp(t, db)

	owner := createTestUser(t, db, "owner@example.com")
	project := createTestProject(t, db, owner)

	for _, kind := range []string{
		models.UpdateKindProgress, models.UpdateKindProgress, models.UpdateKindMilestone,
	} {
		require.NoError(t, db.Create(&models.Update{
			ProjectID: project.ID, AuthorID: owner.ID, Kind: kind, Body: "entry",
		}).Error)
	}

	resp := doRequest(t, app, "GET", "/api/v1/projects/1/updates?kind=progress", owner, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.EqualValues(t, 2, body["total"])

	resp = doRequest(t, app, "GET", "/api/v1/projects/1/updates?kind=bogus", owner, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestEditUpdateAuthorOnly(t *testing.T) {
	db := setupTestDB(t)
	app := newTestApp(t, db)

	owner := createTestUser(t, db, "owner@example.com")
	editor := createTestUser(t, db, "editor@example.com")
	project := createTestProject(t, db, owner)
	require.NoError(t, db.Create(&models.ProjectCollaborator{
		ProjectID: project.ID, UserID: editor.ID, Role: models.CollaboratorRoleEditor,
	}).Error)

	update := models.Update{
		ProjectID: project.ID, AuthorID: editor.ID,
		Kind: models.UpdateKindProgress, Body: "first draft",
	}
	require.NoError(t, db.Create(&update).Error)
	path := fmt.Sprintf("/api/v1/projects/1/updates/%d", update.ID)

	// Even the owner cannot rewrite someone else's words
	resp := doRequest(t, app, "PATCH", path, owner, fiber.Map{"body": "rewritten"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, app, "PATCH", path, editor, fiber.Map{"body": "second draft"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// But the owner may delete anything on their project
	resp = doRequest(t, app, "DELETE", path, owner, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestUpdateScopedToProject(t *testing.T) {
	db := setupTestDB(t)
	app := newTestApp(t, db)

	owner := createTestUser(t, db, "owner@example.com")
	other := createTestUser(t, db, "other@example.com")
	createTestProject(t, db, owner)
	otherProject := createTestProject(t, db, other)

	foreign := models.Update{
		ProjectID: otherProject.ID, AuthorID: other.ID,
		Kind: models.UpdateKindProgress, Body: "not yours",
	}
	require.NoError(t, db.Create(&foreign).Error)

	// A valid update id under the wrong project 404s
	resp := doRequest(t, app, "GET",
		fmt.Sprintf("/api/v1/projects/1/updates/%d", foreign.ID), owner, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestComments(t *testing.T) {
	db := setupTestDB(t)
	app := newTestApp(t, db)

	owner := createTestUser(t, db, "owner@example.com")
	editor := createTestUser(t, db, "editor@example.com")
	project := createTestProject(t, db, owner)
	require.NoError(t, db.Create(&models.ProjectCollaborator{
		ProjectID: project.ID, UserID: editor.ID, Role: models.CollaboratorRoleEditor,
	}).Error)

	update := models.Update{
		ProjectID: project.ID, AuthorID: owner.ID,
		Kind: models.UpdateKindBlocker, Body: "stuck on the index rebuild",
	}
	require.NoError(t, db.Create(&update).Error)
	path := fmt.Sprintf("/api/v1/projects/1/updates/%d/comments", update.ID)

	resp := doRequest(t, app, "POST", path, editor, fiber.Map{"body": "try rebuilding concurrently"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = doRequest(t, app, "GET", path, owner, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var comments []models.Comment
	decodeInto(t, resp, &comments)
	require.Len(t, comments, 1)

	// The author removes their own comment
	resp = doRequest(t, app, "DELETE",
		fmt.Sprintf("%s/%d", path, comments[0].ID), editor, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestReactions(t *testing.T) {
	db := setupTestDB(t)
	app := newTestApp(t, db)

	owner := createTestUser(t, db, "owner@example.com")
	project := createTestProject(t, db, owner)

	update := models.Update{
		ProjectID: project.ID, AuthorID: owner.ID,
		Kind: models.UpdateKindMilestone, Body: "v1 shipped",
	}
	require.NoError(t, db.Create(&update).Error)
	path := fmt.Sprintf("/api/v1/projects/1/updates/%d/reactions", update.ID)

	resp := doRequest(t, app, "PUT", path, owner, fiber.Map{"emoji": "🎉"})
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	// Reacting again with the same emoji is idempotent
	resp = doRequest(t, app, "PUT", path, owner, fiber.Map{"emoji": "🎉"})
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	var count int64
	db.Model(&models.Reaction{}).Where("update_id = ?", update.ID).Count(&count)
	assert.EqualValues(t, 1, count)

	resp = doRequest(t, app, "DELETE", path, owner, fiber.Map{"emoji": "🎉"})
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, app, "DELETE", path, owner, fiber.Map{"emoji": "🎉"})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
