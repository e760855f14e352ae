package worker

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"crewlog/config"
	"crewlog/models"
	"crewlog/utils"
)

// InviteReminderWorker emails invitees whose pending invites expire within
// the next day and who have not been reminded yet. It only reads invite
// status and stamps reminder_sent_at; expiry itself is decided lazily when
// an invite is read, never by a background sweep.
type InviteReminderWorker struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewInviteReminderWorker(db *gorm.DB, logger *log.Logger) *InviteReminderWorker {
	return &InviteReminderWorker{
		DB:     db,
		Logger: logger,
	}
}

const reminderWindow = 24 * time.Hour

func (rw *InviteReminderWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	rw.Logger.Println("Invite reminder worker started")

	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rw.Logger.Println("Invite reminder worker shutting down...")
			return
		case <-ticker.C:
			rw.processProjectInvites()
			rw.processTeamInvites()
		}
	}
}

func (rw *InviteReminderWorker) processProjectInvites() {
	now := time.Now()

	var invites []models.ProjectInvite
	err := rw.DB.Preload("Project").
		Where("status = ? AND reminder_sent_at IS NULL AND expires_at > ? AND expires_at <= ?",
			models.InviteStatusPending, now, now.Add(reminderWindow)).
		Find(&invites).Error
	if err != nil {
		rw.Logger.Printf("Error fetching project invites for reminders: %v", err)
		return
	}

	for _, invite := range invites {
		link := config.AppConfig.AppURL + "/invites/project/" + invite.Token
		if err := utils.SendInviteReminderEmail(invite.Email, invite.Project.Name, link, invite.ExpiresAt); err != nil {
			rw.Logger.Printf("Error sending reminder for project invite %d: %v", invite.ID, err)
			continue
		}
		rw.markReminded(&models.ProjectInvite{}, invite.ID)
	}
}

func (rw *InviteReminderWorker) processTeamInvites() {
	now := time.Now()

	var invites []models.TeamInvite
	err := rw.DB.Preload("Team").
		Where("status = ? AND reminder_sent_at IS NULL AND expires_at > ? AND expires_at <= ?",
			models.InviteStatusPending, now, now.Add(reminderWindow)).
		Find(&invites).Error
	if err != nil {
		rw.Logger.Printf("Error fetching team invites for reminders: %v", err)
		return
	}

	for _, invite := range invites {
		link := config.AppConfig.AppURL + "/invites/team/" + invite.Token
		if err := utils.SendInviteReminderEmail(invite.Email, invite.Team.Name, link, invite.ExpiresAt); err != nil {
			rw.Logger.Printf("Error sending reminder for team invite %d: %v", invite.ID, err)
			continue
		}
		rw.markReminded(&models.TeamInvite{}, invite.ID)
	}
}

// markReminded stamps reminder_sent_at only while the invite is still
// pending, so a concurrent accept or revoke is never overwritten.
func (rw *InviteReminderWorker) markReminded(model interface{}, id uint) {
	res := rw.DB.Model(model).
		Where("id = ? AND status = ?", id, models.InviteStatusPending).
		Update("reminder_sent_at", time.Now())
	if res.Error != nil {
		rw.Logger.Printf("Error stamping reminder for invite %d: %v", id, res.Error)
	}
}
