// Package database opens the MySQL and Redis connections.
package database

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"juris-rag-go/internal/model"
	"juris-rag-go/pkg/log"
)

// NewMySQL opens dsn and migrates the ingestion run table. An empty dsn
// returns a nil *gorm.DB, which disables run history.
func NewMySQL(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		log.Info("[Database] no MySQL DSN configured, ingestion run history disabled")
		return nil, nil
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&model.IngestionRun{}); err != nil {
		return nil, fmt.Errorf("migrate ingestion_runs: %w", err)
	}
	log.Info("[Database] MySQL connected")
	return db, nil
}
