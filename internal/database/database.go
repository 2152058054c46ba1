package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hugh/orchestra/internal/apperr"
	"github.com/hugh/orchestra/internal/database/models"
	"github.com/hugh/orchestra/pkg/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

func Connect(cfg *config.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	gormLogger := logger.Default.LogMode(logger.Warn)
	if log.Enabled(context.Background(), slog.LevelDebug) {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying db: %w", err)
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	log.Info("connected to database", "host", cfg.Host, "database", cfg.Name)

	return db, nil
}

// Models lists every persisted type in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.Enterprise{},
		&models.Module{},
		&models.ModuleLimit{},
		&models.Role{},
		&models.User{},
		&models.EnterpriseModule{},
		&models.EnterprisePurchasedModule{},
		&models.EnterpriseSubscription{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// Reset drops every table and migrates again.
func Reset(db *gorm.DB) error {
	all := Models()
	for i := len(all) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(all[i]); err != nil {
			return fmt.Errorf("dropping %T: %w", all[i], err)
		}
	}
	return AutoMigrate(db)
}

// LockEnterprise loads the tenant row with FOR UPDATE inside tx, serialising
// writers that check a per-tenant cap. SQLite ignores the locking clause and
// relies on its single writer. A missing tenant is an apperr not-found error.
func LockEnterprise(tx *gorm.DB, id uuid.UUID) (*models.Enterprise, error) {
	var e models.Enterprise
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Enterprise not found")
		}
		return nil, fmt.Errorf("locking enterprise: %w", err)
	}
	return &e, nil
}
