// Package migrations holds the versioned schema changes applied by goose.
package migrations

import (
	"context"
	"embed"

	"gorm.io/gorm"

	"adconsole/internal/models"
)

// FS carries the SQL migrations. Go migrations register themselves in init.
//
//go:embed *.sql
var FS embed.FS

// SetupJoinTables registers UserGroup as the membership join model on database.
func SetupJoinTables(database *gorm.DB) error {
	if err := database.SetupJoinTable(&models.User{}, "Groups", &models.UserGroup{}); err != nil {
		return err
	}
	return database.SetupJoinTable(&models.Group{}, "Members", &models.UserGroup{})
}

// AutoMigrate brings the schema in line with the models.
func AutoMigrate(ctx context.Context, database *gorm.DB) error {
	if err := SetupJoinTables(database); err != nil {
		return err
	}

	return database.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.UserGroup{},
		&models.OrganizationalUnit{},
		&models.Computer{},
		&models.Session{},
		&models.AuditLog{},
	)
}
