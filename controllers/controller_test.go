package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"crewlog/config"
	"crewlog/models"
	"crewlog/utils"
)

func TestMain(m *testing.M) {
	// No SMTP host configured, so mailers log and skip instead of dialing
	config.AppConfig = config.Config{
		Environment:    "test",
		AppURL:         "http://localhost:3000",
		InviteTTLHours: 168,
	}
	os.Exit(m.Run())
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return db
}

// newTestApp wires the controllers with a header-driven stand-in for the JWT
// middleware: X-User-ID selects the authenticated user, its absence makes the
// request anonymous.
func newTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if id := c.Get("X-User-ID"); id != "" {
			var user models.User
			if err := db.First(&user, utils.ParseUint(id)).Error; err == nil {
				c.Locals("user", &user)
				c.Locals("userID", user.ID)
			}
		}
		return c.Next()
	})

	quiet := log.New(io.Discard, "", 0)
	projectController := NewProjectController(db, quiet)
	collaboratorController := NewCollaboratorController(db, quiet)
	projectInviteController := NewProjectInviteController(db, quiet)
	shareController := NewShareController(db, quiet)
	updateController := NewUpdateController(db, quiet)
	teamController := NewTeamController(db, quiet)
	teamInviteController := NewTeamInviteController(db, quiet)

	app.Get("/public/projects/:token", shareController.GetPublicProject)
	app.Get("/public/projects/:token/feed", shareController.GetPublicFeed)

	api := app.Group("/api/v1")
	api.Post("/projects", projectController.CreateProject)
	api.Get("/projects", projectController.GetProjects)
	api.Get("/projects/:id", projectController.GetProject)
	api.Patch("/projects/:id", projectController.UpdateProject)
	api.Put("/projects/:id", projectController.UpdateProject)
	api.Delete("/projects/:id", projectController.DeleteProject)

	api.Get("/projects/:id/collaborators", collaboratorController.ListCollaborators)
	api.Post("/projects/:id/collaborators", collaboratorController.AddCollaborator)
	api.Put("/projects/:id/collaborators/:userId", collaboratorController.UpdateCollaboratorRole)
	api.Delete("/projects/:id/collaborators/:userId", collaboratorController.RemoveCollaborator)

	api.Post("/projects/:id/invites", projectInviteController.CreateInvite)
	api.Post("/projects/:id/share", shareController.EnableShare)
	api.Delete("/projects/:id/share", shareController.DisableShare)
	api.Post("/projects/:id/share/regenerate", shareController.RegenerateShare)

	api.Post("/projects/:id/updates", updateController.CreateUpdate)
	api.Get("/projects/:id/updates", updateController.ListUpdates)
	api.Get("/projects/:id/updates/:updateId", updateController.GetUpdate)
	api.Patch("/projects/:id/updates/:updateId", updateController.EditUpdate)
	api.Delete("/projects/:id/updates/:updateId", updateController.DeleteUpdate)
	api.Post("/projects/:id/updates/:updateId/comments", updateController.CreateComment)
	api.Get("/projects/:id/updates/:updateId/comments", updateController.ListComments)
	api.Delete("/projects/:id/updates/:updateId/comments/:commentId", updateController.DeleteComment)
	api.Put("/projects/:id/updates/:updateId/reactions", updateController.AddReaction)
	api.Delete("/projects/:id/updates/:updateId/reactions", updateController.RemoveReaction)

	api.Get("/invites/me", projectInviteController.ListMyInvites)
	api.Post("/invites/project/:token/accept", projectInviteController.AcceptInvite)
	api.Post("/invites/project/:token/decline", projectInviteController.DeclineInvite)
	api.Post("/invites/team/:token/accept", teamInviteController.AcceptInvite)
	api.Post("/invites/team/:token/decline", teamInviteController.DeclineInvite)

	api.Post("/teams", teamController.CreateTeam)
	api.Post("/teams/:id/invites", teamInviteController.CreateInvite)
	api.Post("/teams/:id/invites/:inviteId/revoke", teamInviteController.RevokeInvite)
	api.Post("/teams/:id/invites/:inviteId/resend", teamInviteController.ResendInvite)

	return app
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{
		Email:               email,
		PasswordHash:        "x",
		IsActive:            true,
		GlobalProjectAccess: models.AccessNone,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestProject(t *testing.T, db *gorm.DB, owner *models.User) *models.Project {
	t.Helper()
	project := &models.Project{
		OwnerID:        owner.ID,
		Name:           "rollout",
		Visibility:     models.VisibilityPrivate,
		AllUsersAccess: models.AccessNone,
	}
	require.NoError(t, db.Create(project).Error)
	return project
}

// doRequest performs a JSON request as the given user; user == nil sends the
// request anonymously.
func doRequest(t *testing.T, app *fiber.App, method, path string, user *models.User, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req.Header.Set("X-User-ID", strconv.FormatUint(uint64(user.ID), 10))
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	return out
}

func decodeInto(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	resp.Body.Close()
}
