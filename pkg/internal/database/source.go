package database

import (
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var C *gorm.DB

func NewGorm() error {
	logLevel := logger.Silent
	if viper.GetBool("debug.database") {
		logLevel = logger.Info
	}

	var err error
	C, err = gorm.Open(postgres.Open(viper.GetString("database.dsn")), &gorm.Config{
		// Lets the postgres driver surface unique violations as
		// gorm.ErrDuplicatedKey, which the vote engine relies on.
		TranslateError: true,
		Logger:         logger.Default.LogMode(logLevel),
	})

	return err
}
