package infra

import (
	"fmt"

	"tillshift/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported DATABASE_DRIVER values.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// NewDatabase opens the configured backend, migrates the schema and applies
// the patches GORM tags cannot express. The backend is chosen once here;
// repositories never branch on it.
func NewDatabase(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// single writer; also keeps ":memory:" databases on one connection
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates/updates tables and applies schema patches.
// Safe to run repeatedly.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Operator{},
		&model.Till{},
		&model.Shift{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL that GORM tags cannot express.
// The statements are valid for both PostgreSQL and SQLite.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// one OPEN shift per till, independent of operating date
		{"partial unique index idx_shifts_open_till", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_shifts_open_till
    ON shifts (outlet_id, till_id)
    WHERE status = 'OPEN'`},
		{"index idx_shifts_outlet_date", `
CREATE INDEX IF NOT EXISTS idx_shifts_outlet_date
    ON shifts (outlet_id, operating_date)`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
