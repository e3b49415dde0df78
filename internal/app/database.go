package app

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"authsimple/internal/config"
	"authsimple/internal/models"
	"authsimple/internal/repositories"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenDatabase connects to the configured SQL database and migrates the
// users table.
func OpenDatabase(driver, dsn string) (*gorm.DB, error) {
	return openDatabase(driver, dsn, newGormLogger(os.Stdout))
}

// newGormLogger reports slow queries and failures. Lookups that find no
// row are an expected outcome and stay quiet.
func newGormLogger(w io.Writer) gormlogger.Interface {
	return gormlogger.New(log.New(w, "\r\n", log.LstdFlags), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

func openDatabase(driver, dsn string, dbLogger gormlogger.Interface) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         dbLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// NewUserRepository builds the repository selected by DATABASE_DRIVER. The
// returned close function releases the underlying connection pool.
func NewUserRepository(cfg config.Config) (repositories.UserRepository, func() error, error) {
	if cfg.DatabaseDriver == "memory" {
		return repositories.NewInMemoryUserRepository(), func() error { return nil }, nil
	}

	db, err := OpenDatabase(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	return repositories.NewGORMUserRepository(db), sqlDB.Close, nil
}
