package models

import "gorm.io/gorm"

// Migrate runs AutoMigrate for every model in dependency order.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Team{},
		&TeamMember{},
		&Project{},
		&ProjectCollaborator{},
		&ProjectInvite{},
		&TeamInvite{},
		&Update{},
		&Comment{},
		&Reaction{},
	)
}
