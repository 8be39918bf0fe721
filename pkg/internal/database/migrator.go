package database

import (
	"github.com/openballot/ballotbox/pkg/internal/models"
	"gorm.io/gorm"
)

var AutoMaintainRange = []any{
	&models.Question{},
	&models.Option{},
	&models.Vote{},
	&models.SyncDelivery{},
}

func RunMigration(source *gorm.DB) error {
	if err := source.AutoMigrate(AutoMaintainRange...); err != nil {
		return err
	}

	return nil
}
