package db

import (
	"errors"
	"fmt"

	"certus/internal/config"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var errDBUnavailable = errors.New("database unavailable")

type Store struct {
	DB *gorm.DB
}

// NewStore opens the authoritative datastore. Postgres is the production
// driver; the embedded sqlite driver serves dev and test deployments.
func NewStore(cfg config.Config) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, errors.New("POSTGRES_DSN is required with DB_DRIVER=postgres")
		}
		dialector = postgres.Open(cfg.PostgresDSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.DBDriver, err)
	}

	if err := gdb.AutoMigrate(
		&ProofModel{},
		&SnapshotMetaModel{},
		&BatchCursorModel{},
		&RecoveryAuditResultModel{},
		&CrossMirrorValidationModel{},
		&AuditRunModel{},
		&ArchiveJobModel{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{DB: gdb}, nil
}
