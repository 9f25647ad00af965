// File: internal/store/store.go
package store

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/xkilldash9x/mediaforge/internal/config"
)

// ErrNotFound is returned for lookups of records that do not exist. It
// wraps gorm's sentinel so handlers need only know about this package.
var ErrNotFound = errors.New("store: record not found")

// Store wraps the database handle and owns all query logic. Handlers never
// touch gorm directly.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to the configured backend and migrates the schema.
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("store: failed to connect (%s): %w", cfg.Driver, err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	s := &Store{db: db, logger: logger.Named("store")}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	s.logger.Info("Database ready.", zap.String("driver", cfg.Driver))
	return s, nil
}

func (s *Store) migrate() error {
	if err := s.db.AutoMigrate(
		&User{},
		&Profile{},
		&Post{},
		&Comment{},
		&Like{},
		&Tag{},
	); err != nil {
		return fmt.Errorf("store: migration failed: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translate maps gorm errors to package sentinels.
func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
