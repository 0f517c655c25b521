package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	pgstore "github.com/labomba/deposit-settlement/internal/store/postgres"
	"github.com/labomba/deposit-settlement/internal/utils/config"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
)

func newMigrator(db *gorm.DB, dir string) (*migrate.Migrate, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get database connection")
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "create postgres driver")
	}

	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", dir), "postgres", driver)
	if err != nil {
		return nil, errors.Wrap(err, "create migrate instance")
	}
	return m, nil
}

// run applies all pending migrations, or rolls back steps when steps > 0.
func run(m *migrate.Migrate, steps int) error {
	var err error
	if steps > 0 {
		err = m.Steps(-steps)
	} else {
		err = m.Up()
	}
	if err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func main() {
	down := flag.Int("down", 0, "number of migrations to roll back")
	dir := flag.String("dir", filepath.Join("migrations", "schema"), "migration directory")
	flag.Parse()

	appConfig := config.New()
	logger := logger.New(appConfig.Environment)

	db := pgstore.New(appConfig, logger)

	m, err := newMigrator(db, *dir)
	if err != nil {
		logger.Error("[main][newMigrator]", map[string]string{"error": err.Error()})
		os.Exit(1)
	}

	if err := run(m, *down); err != nil {
		logger.Error("[main][run] migration failed", map[string]string{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	version, dirty, _ := m.Version()
	logger.Info("Migrations completed successfully", map[string]string{
		"version": fmt.Sprintf("%d", version),
		"dirty":   fmt.Sprintf("%t", dirty),
	})
}
