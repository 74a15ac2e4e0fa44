package models

import "gorm.io/gorm"

func AutoMigrateAll(db *gorm.DB) error {
	err := db.AutoMigrate(
		&ChatRecord{},
		&MessageRecord{},
	)
	if err != nil {
		return err
	}
	return nil
}
