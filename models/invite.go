package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Invite lifecycle states. An invite leaves pending exactly once and is never
// reopened. Revoked exists for team invites only.
const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusDeclined = "declined"
	InviteStatusExpired  = "expired"
	InviteStatusRevoked  = "revoked"
)

// ProjectInvite is a time-bounded, email-addressed, single-use grant offer on
// a personally-owned project. It is bound to an email rather than a user id
// because the invitee may not have an account yet.
type ProjectInvite struct {
	gorm.Model
	ProjectID uint   `gorm:"not null;index" json:"project_id"`
	Email     string `gorm:"not null;index" json:"email"` // stored lowercased
	Role      string `gorm:"not null;default:'viewer'" json:"role"` // editor, viewer

	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	Status    string    `gorm:"not null;default:'pending';index" json:"status"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`

	InvitedBy  uint       `gorm:"not null" json:"invited_by"`
	AcceptedBy *uint      `json:"accepted_by,omitempty"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`

	// Stamped by the reminder worker so each pending invite is nudged once.
	ReminderSentAt *time.Time `json:"-"`

	Project Project `json:"project,omitempty"`
	Inviter User    `gorm:"foreignKey:InvitedBy" json:"-"`
}

// TeamInvite mirrors ProjectInvite for team onboarding. Unlike project
// invites it supports revocation and in-place resend.
type TeamInvite struct {
	gorm.Model
	TeamID uint   `gorm:"not null;index" json:"team_id"`
	Email  string `gorm:"not null;index" json:"email"` // stored lowercased
	Role   string `gorm:"not null;default:'member'" json:"role"` // admin, member, viewer

	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	Status    string    `gorm:"not null;default:'pending';index" json:"status"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`

	InvitedBy  uint       `gorm:"not null" json:"invited_by"`
	AcceptedBy *uint      `json:"accepted_by,omitempty"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`

	ReminderSentAt *time.Time `json:"-"`

	Team    Team `json:"team,omitempty"`
	Inviter User `gorm:"foreignKey:InvitedBy" json:"-"`
}

// NormalizeInviteEmail lowercases an invite email so (email, scope) matching
// is case-insensitive everywhere.
func NormalizeInviteEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsExpired reports whether the invite deadline has passed. Expiry is lazily
// evaluated at read/accept time; nothing sweeps invites in the background.
func (i *ProjectInvite) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

func (i *TeamInvite) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
