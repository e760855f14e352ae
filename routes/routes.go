package routes

import (
	"log"
	"os"

	controller "crewlog/controllers"
	"crewlog/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"
)

func SetupAuthRoutes(app *fiber.App, db *gorm.DB) {
	authLogger := log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile)

	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints (no authentication required)
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Post("/refresh", controller.RefreshToken)

	// Google OAuth routes
	auth.Get("/google", controller.GoogleOAuth)
	auth.Get("/google/callback", controller.GoogleOAuthCallback)

	// Protected auth endpoints (require valid JWT)
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Post("/logout", controller.Logout)
	protectedAuth.Post("/change-password", controller.ChangePassword)
	protectedAuth.Get("/me", controller.GetCurrentUser)

	authLogger.Println("Authentication routes initialized successfully")
}

// SetupPublicRoutes registers the anonymous share-link endpoints. These sit
// outside the JWT middleware on purpose; the token in the URL is the only
// credential.
func SetupPublicRoutes(app *fiber.App, db *gorm.DB) {
	shareController := controller.NewShareController(db, log.New(os.Stdout, "SHARE: ", log.LstdFlags))

	public := app.Group("/public", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	public.Get("/projects/:token", shareController.GetPublicProject)
	public.Get("/projects/:token/feed", shareController.GetPublicFeed)
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB) {
	projectController := controller.NewProjectController(db, log.New(os.Stdout, "PROJECT: ", log.LstdFlags))
	collaboratorController := controller.NewCollaboratorController(db, log.New(os.Stdout, "COLLAB: ", log.LstdFlags))
	projectInviteController := controller.NewProjectInviteController(db, log.New(os.Stdout, "INVITE: ", log.LstdFlags))
	shareController := controller.NewShareController(db, log.New(os.Stdout, "SHARE: ", log.LstdFlags))
	updateController := controller.NewUpdateController(db, log.New(os.Stdout, "UPDATE: ", log.LstdFlags))
	teamController := controller.NewTeamController(db, log.New(os.Stdout, "TEAM: ", log.LstdFlags))
	teamInviteController := controller.NewTeamInviteController(db, log.New(os.Stdout, "INVITE: ", log.LstdFlags))
	userController := controller.NewUserController(db, log.New(os.Stdout, "USER: ", log.LstdFlags))

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Project routes
	project := api.Group("/projects")
	project.Post("/", projectController.CreateProject)
	project.Get("/", projectController.GetProjects)
	project.Get("/:id", projectController.GetProject)
	project.Patch("/:id", projectController.UpdateProject)
	project.Put("/:id", projectController.UpdateProject)
	project.Delete("/:id", projectController.DeleteProject)

	// Collaborator routes
	project.Get("/:id/collaborators", collaboratorController.ListCollaborators)
	project.Post("/:id/collaborators", collaboratorController.AddCollaborator)
	project.Put("/:id/collaborators/:userId", collaboratorController.UpdateCollaboratorRole)
	project.Delete("/:id/collaborators/:userId", collaboratorController.RemoveCollaborator)

	// Invite creation is rate limited per user
	project.Post("/:id/invites", middleware.InviteRateLimiter(), projectInviteController.CreateInvite)

	// Share gate routes
	project.Post("/:id/share", shareController.EnableShare)
	project.Delete("/:id/share", shareController.DisableShare)
	project.Post("/:id/share/regenerate", shareController.RegenerateShare)

	// Feed routes
	project.Post("/:id/updates", updateController.CreateUpdate)
	project.Get("/:id/updates", updateController.ListUpdates)
	project.Get("/:id/updates/:updateId", updateController.GetUpdate)
	project.Patch("/:id/updates/:updateId", updateController.EditUpdate)
	project.Delete("/:id/updates/:updateId", updateController.DeleteUpdate)
	project.Post("/:id/updates/:updateId/comments", updateController.CreateComment)
	project.Get("/:id/updates/:updateId/comments", updateController.ListComments)
	project.Delete("/:id/updates/:updateId/comments/:commentId", updateController.DeleteComment)
	project.Put("/:id/updates/:updateId/reactions", updateController.AddReaction)
	project.Delete("/:id/updates/:updateId/reactions", updateController.RemoveReaction)

	// Invite lifecycle routes, keyed by the secret token from the email
	invites := api.Group("/invites")
	invites.Get("/me", projectInviteController.ListMyInvites)
	invites.Post("/project/:token/accept", projectInviteController.AcceptInvite)
	invites.Post("/project/:token/decline", projectInviteController.DeclineInvite)
	invites.Post("/team/:token/accept", teamInviteController.AcceptInvite)
	invites.Post("/team/:token/decline", teamInviteController.DeclineInvite)

	// Team routes
	team := api.Group("/teams")
	team.Post("/", teamController.CreateTeam)
	team.Get("/", teamController.GetTeams)
	team.Get("/:id", teamController.GetTeam)
	team.Put("/:id", teamController.UpdateTeam)
	team.Delete("/:id", teamController.DeleteTeam)
	team.Put("/:id/members/:userId", teamController.UpdateMemberRole)
	team.Delete("/:id/members/:userId", teamController.RemoveMember)

	// Team invites; revoke and resend are admin-side and keyed by row id
	team.Post("/:id/invites", middleware.InviteRateLimiter(), teamInviteController.CreateInvite)
	team.Post("/:id/invites/:inviteId/revoke", teamInviteController.RevokeInvite)
	team.Post("/:id/invites/:inviteId/resend", teamInviteController.ResendInvite)

	// Admin routes
	admin := api.Group("/users", middleware.AdminOnly())
	admin.Get("/global-access/list", userController.ListGlobalAccess)
	admin.Put("/:id/global-access", userController.SetGlobalAccess)

	log.Println("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, db *gorm.DB) {
	// Setup health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	SetupAuthRoutes(app, db)
	SetupPublicRoutes(app, db)
	SetupAPIRoutes(app, db)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
