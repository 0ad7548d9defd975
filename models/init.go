package models

import (
	"gorm.io/gorm"
)

// Migrate runs the schema migration for every entity.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&RefreshToken{},
		&Company{},
		&Customer{},
		&Invoice{},
		&Payment{},
		&ReminderSequence{},
		&SequenceStep{},
		&SequenceExecution{},
		&Holiday{},
	)
}

// SeedHolidays inserts the UAE holiday table, skipping dates already present
// so re-running on boot is safe.
func SeedHolidays(db *gorm.DB) error {
	for _, h := range UAEHolidays() {
		var count int64
		if err := db.Model(&Holiday{}).Where("date = ?", h.Date).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		holiday := h
		if err := db.Create(&holiday).Error; err != nil {
			return err
		}
	}
	return nil
}
