package db

import (
	"database/sql"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenGorm wraps the existing *sql.DB pool for gorm. Playlists go through
// gorm while songs and users keep their database/sql repositories.
func OpenGorm(sqlDB *sql.DB) (*gorm.DB, error) {
	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open GORM on the existing pool: %w", err)
	}
	return gdb, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
		// the schema is owned by InitDB
		DisableForeignKeyConstraintWhenMigrating: true,
	}
}
