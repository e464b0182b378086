package database

import (
	"log"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func GetMigrator(db *gorm.DB) *gormigrate.Gormigrate {
	migrator := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "0",
			Migrate: func(txn *gorm.DB) error {
				return txn.AutoMigrate(&User{}, &ChatMessage{})
			},
			Rollback: func(txn *gorm.DB) error {
				return txn.Migrator().DropTable(&ChatMessage{}, &User{})
			},
		},
		{
			ID: "1",
			Migrate: func(txn *gorm.DB) error {
				return txn.AutoMigrate(&StoreEntry{})
			},
			Rollback: func(txn *gorm.DB) error {
				return txn.Migrator().DropTable(&StoreEntry{})
			},
		},
	})

	migrator.InitSchema(func(txn *gorm.DB) error {
		// Run when no previous migration is recorded; creates the latest schema
		// directly and marks every migration as applied.
		log.Println("clean database detected, running full schema initialization")
		return txn.AutoMigrate(&User{}, &ChatMessage{}, &StoreEntry{})
	})

	return migrator
}
