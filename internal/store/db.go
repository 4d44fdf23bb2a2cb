// Package store persists snapshots, decisions, and consensus events in
// SQLite. Uniqueness constraints live in the schema, not in application
// locks: concurrent writers racing on the same key resolve through the
// constraint, with the loser observing a no-op.
package store

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/quantfabric/analystd/internal/config"
)

// Open opens the SQLite database and migrates the schema.
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.Path, err)
	}

	if err := db.AutoMigrate(&Snapshot{}, &DecisionRow{}, &EventRow{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	logger.Info("database opened", zap.String("path", cfg.Path))
	return db, nil
}
