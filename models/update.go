package models

import "gorm.io/gorm"

// Update kinds
const (
	UpdateKindProgress  = "progress"
	UpdateKindBlocker   = "blocker"
	UpdateKindMilestone = "milestone"
)

// Update is a timestamped entry on a project's feed
type Update struct {
	gorm.Model
	ProjectID uint   `gorm:"not null;index" json:"project_id"`
	AuthorID  uint   `gorm:"not null;index" json:"author_id"`
	Kind      string `gorm:"not null;default:'progress'" json:"kind"` // progress, blocker, milestone
	Body      string `gorm:"not null" json:"body"`

	// Relations
	Project   Project    `json:"-"`
	Author    User       `json:"author,omitempty"`
	Comments  []Comment  `gorm:"foreignKey:UpdateID" json:"comments,omitempty"`
	Reactions []Reaction `gorm:"foreignKey:UpdateID" json:"reactions,omitempty"`
}

// Comment is a reply on an update
type Comment struct {
	gorm.Model
	UpdateID uint   `gorm:"not null;index" json:"update_id"`
	AuthorID uint   `gorm:"not null;index" json:"author_id"`
	Body     string `gorm:"not null" json:"body"`

	Update Update `json:"-"`
	Author User   `json:"author,omitempty"`
}

// Reaction is an emoji reaction on an update, one per (update, user, emoji)
type Reaction struct {
	gorm.Model
	UpdateID uint   `gorm:"not null;uniqueIndex:uni_update_reaction" json:"update_id"`
	UserID   uint   `gorm:"not null;uniqueIndex:uni_update_reaction" json:"user_id"`
	Emoji    string `gorm:"not null;uniqueIndex:uni_update_reaction" json:"emoji"`

	Update Update `json:"-"`
	User   User   `json:"-"`
}

// ValidUpdateKind reports whether s is a recognized update kind.
func ValidUpdateKind(s string) bool {
	return s == UpdateKindProgress || s == UpdateKindBlocker || s == UpdateKindMilestone
}
