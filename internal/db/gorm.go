package db

import (
	"fmt"

	"stratboard/internal/config"
	"stratboard/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormDB wraps the GORM database instance
type GormDB struct {
	*gorm.DB
}

// NewGorm opens the postgres connection and brings the collaboration tables up to date
func NewGorm(cfg *config.Config) (*GormDB, error) {
	level := logger.Warn
	if cfg.LogLevel == "debug" || cfg.LogLevel == "trace" {
		level = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL()), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	logrus.WithField("component", "db").Info("Database connected and migrated")

	return &GormDB{db}, nil
}

// Migrate creates or updates the tables the room engine reads and writes
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Battleplan{},
		&models.BattleplanFloor{},
		&models.Operator{},
		&models.OperatorSlot{},
		&models.Draw{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *GormDB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
